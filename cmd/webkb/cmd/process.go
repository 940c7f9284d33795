package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newProcessCmd() *cobra.Command {
	var maxBatches int
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Drain the pending queue: fetch, chunk, embed, and index",
		Long: `process runs the Queue Processor (spec §4.9): claims pending catalog
entries in batches and carries each through fetch, chunk, embed, and
enrich, writing the result into the indexes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), maxBatches)
		},
	}
	cmd.Flags().IntVar(&maxBatches, "max-batches", 0, "Stop after this many batches (0 = unbounded, drain until empty)")
	return cmd
}

func runProcess(ctx context.Context, maxBatches int) error {
	cfg, err := loadConfig()
	if err != nil {
		return exitErr(err)
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return exitErr(err)
	}
	defer a.Close()

	result, err := a.svc.ProcessQueue(ctx, maxBatches)
	if err != nil {
		return exitErr(err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmdOut())
		return enc.Encode(result)
	}
	fmt.Printf("succeeded %d, failed %d, skipped %d\n", result.Succeeded, result.Failed, result.Skipped)
	return nil
}
