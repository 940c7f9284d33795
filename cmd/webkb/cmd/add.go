package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <url-or-prompt>",
		Short: "Discover sources from a URL or free-form prompt",
		Long: `add runs discovery (spec §4.8): literal URLs in the argument are
added directly; anything else is treated as a prompt and expanded via
LLM-synthesized search queries against the configured search provider.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd.Context(), strings.Join(args, " "))
		},
	}
}

func runAdd(ctx context.Context, input string) error {
	cfg, err := loadConfig()
	if err != nil {
		return exitErr(err)
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return exitErr(err)
	}
	defer a.Close()

	result, err := a.svc.AddSources(ctx, input)
	if err != nil {
		return exitErr(err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmdOut())
		return enc.Encode(result)
	}
	fmt.Printf("added %d, skipped %d (duplicates)\n", result.Added, result.Skipped)
	return nil
}
