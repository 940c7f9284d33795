package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/webkb/internal/refresh"
)

func newRefreshCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-check due catalog entries and re-index the ones that changed",
		Long: `refresh runs one Refresher pass (spec §4.10/§6): entries whose
refresh policy has come due are cheap-checked and, when changed, fully
re-fetched and re-indexed. With --watch, it instead blocks and runs a
pass on the configured cron schedule (refresh.cron_expression) until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return runRefreshWatch(cmd.Context())
			}
			return runRefresh(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Run on the configured cron schedule instead of once")
	return cmd
}

func runRefresh(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return exitErr(err)
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return exitErr(err)
	}
	defer a.Close()

	result, err := a.svc.RefreshOnce(ctx)
	if err != nil {
		return exitErr(err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmdOut())
		return enc.Encode(result)
	}
	fmt.Printf("checked %d, unchanged %d, updated %d, failed %d\n", result.Checked, result.Unchanged, result.Updated, result.Failed)
	return nil
}

func runRefreshWatch(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return exitErr(err)
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return exitErr(err)
	}
	defer a.Close()

	scheduler, err := refresh.NewScheduler(a.svc.Refresher, cfg.Refresh.CronExpression, nil)
	if err != nil {
		return exitErr(err)
	}
	fmt.Printf("refresh: watching on schedule %q\n", cfg.Refresh.CronExpression)
	if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
		return exitErr(err)
	}
	return nil
}
