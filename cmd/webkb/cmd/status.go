package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog and index counts",
		Long: `status reports catalog entry counts by status and kind, total
indexed chunk count, and the last recorded quota snapshot for any
metered external API (spec §6).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context())
		},
	}
}

func runStatus(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return exitErr(err)
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return exitErr(err)
	}
	defer a.Close()

	result, err := a.svc.Status(ctx)
	if err != nil {
		return exitErr(err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmdOut())
		return enc.Encode(result)
	}
	fmt.Println("catalog by status:")
	for status, n := range result.CatalogByStatus {
		fmt.Printf("  %-10s %d\n", status, n)
	}
	fmt.Println("catalog by kind:")
	for kind, n := range result.CatalogByKind {
		fmt.Printf("  %-14s %d\n", kind, n)
	}
	fmt.Printf("chunks indexed: %d\n", result.ChunkCount)
	if len(result.Quota) > 0 {
		fmt.Println("quota:")
		for api, n := range result.Quota {
			fmt.Printf("  %-20s %d remaining\n", api, n)
		}
	}
	return nil
}
