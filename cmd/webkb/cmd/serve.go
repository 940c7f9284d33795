package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/webkb/internal/mcpserver"
)

func newServeCmd() *cobra.Command {
	var transport string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server, exposing add_sources, process_queue, search, status, and refresh_once as tools",
		Long: `serve starts a Model Context Protocol server (spec §6) so an AI
client can call add_sources, process_queue, search, status, and
refresh_once as tools over the given transport.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), transport)
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "", "MCP transport (stdio; empty uses config default)")
	return cmd
}

func runServe(ctx context.Context, transport string) error {
	cfg, err := loadConfig()
	if err != nil {
		return exitErr(err)
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return exitErr(err)
	}
	defer a.Close()

	if transport == "" {
		transport = cfg.Server.Transport
	}

	srv, err := mcpserver.NewServer(a.svc, slog.Default())
	if err != nil {
		return exitErr(err)
	}
	return srv.Serve(ctx, transport)
}
