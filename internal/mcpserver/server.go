package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/webkb/internal/api"
	"github.com/Aman-CERP/webkb/internal/search"
	"github.com/Aman-CERP/webkb/internal/store"
	"github.com/Aman-CERP/webkb/pkg/version"
)

// Server wraps an internal/api.Service and exposes its five operations
// (spec §6) as MCP tools.
type Server struct {
	mcp    *mcp.Server
	svc    *api.Service
	logger *slog.Logger
}

// NewServer builds an MCP server over svc. A nil logger falls back to
// slog.Default().
func NewServer(svc *api.Service, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("mcpserver: svc must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{svc: svc, logger: logger}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "webkb",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "add_sources",
		Description: "Discover and enqueue sources from a literal URL, a list of URLs, or a free-text prompt. New sources land in the catalog as pending; run process_queue to fetch and index them.",
	}, s.handleAddSources)
	s.logger.Debug("registered MCP tool", slog.String("name", "add_sources"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "process_queue",
		Description: "Drain pending catalog entries: fetch, chunk, embed, enrich, and index each one. Use this after add_sources to make new sources searchable.",
	}, s.handleProcessQueue)
	s.logger.Debug("registered MCP tool", slog.String("name", "process_queue"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search the indexed knowledge base with hybrid semantic and lexical retrieval, optional LLM query expansion, and cross-encoder reranking.",
	}, s.handleSearch)
	s.logger.Debug("registered MCP tool", slog.String("name", "search"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "status",
		Description: "Report catalog entry counts by status and kind, total indexed chunk count, and the last recorded quota snapshot for any metered external API.",
	}, s.handleStatus)
	s.logger.Debug("registered MCP tool", slog.String("name", "status"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "refresh_once",
		Description: "Run one Refresher pass: cheap-check entries whose refresh policy has come due, and fully re-fetch and re-index the ones that changed.",
	}, s.handleRefreshOnce)
	s.logger.Debug("registered MCP tool", slog.String("name", "refresh_once"))

	s.logger.Info("MCP tools registered", slog.Int("count", 5))
}

func (s *Server) handleAddSources(ctx context.Context, _ *mcp.CallToolRequest, input AddSourcesInput) (
	*mcp.CallToolResult, AddSourcesOutput, error,
) {
	if input.Input == "" {
		return nil, AddSourcesOutput{}, NewInvalidParamsError("input parameter is required")
	}
	result, err := s.svc.AddSources(ctx, input.Input)
	if err != nil {
		return nil, AddSourcesOutput{}, MapError(err)
	}
	return nil, AddSourcesOutput{Added: result.Added, Skipped: result.Skipped}, nil
}

func (s *Server) handleProcessQueue(ctx context.Context, _ *mcp.CallToolRequest, input ProcessQueueInput) (
	*mcp.CallToolResult, ProcessQueueOutput, error,
) {
	result, err := s.svc.ProcessQueue(ctx, input.MaxBatches)
	if err != nil {
		return nil, ProcessQueueOutput{}, MapError(err)
	}
	return nil, ProcessQueueOutput{Succeeded: result.Succeeded, Failed: result.Failed, Skipped: result.Skipped}, nil
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	opts := search.DefaultSearchOptions()
	if input.Limit > 0 {
		opts.K = input.Limit
	}
	opts.Filter = store.Filter{Kind: input.Kind, Domain: input.Domain}
	if input.Hybrid != nil {
		opts.Hybrid = *input.Hybrid
	}
	if input.Rerank != nil {
		opts.Reranking = *input.Rerank
	}
	if input.Expansion != nil {
		opts.Expansion = *input.Expansion
	}

	results, err := s.svc.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	out := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchResultOutput{
			Text:       r.Text,
			SourceURL:  r.Metadata.SourceURL,
			Kind:       r.Metadata.Kind,
			Domain:     r.Metadata.Domain,
			Summary:    r.Metadata.Summary,
			Topics:     r.Metadata.Topics,
			Keywords:   r.Metadata.Keywords,
			Difficulty: r.Metadata.Difficulty,
			Score:      r.Score,
			ScoreKind:  string(r.Kind),
		})
	}
	return nil, out, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult, StatusOutput, error,
) {
	result, err := s.svc.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, MapError(err)
	}
	return nil, StatusOutput{
		CatalogByStatus: result.CatalogByStatus,
		CatalogByKind:   result.CatalogByKind,
		ChunkCount:      result.ChunkCount,
		Quota:           result.Quota,
	}, nil
}

func (s *Server) handleRefreshOnce(ctx context.Context, _ *mcp.CallToolRequest, _ RefreshInput) (
	*mcp.CallToolResult, RefreshOutput, error,
) {
	result, err := s.svc.RefreshOnce(ctx)
	if err != nil {
		return nil, RefreshOutput{}, MapError(err)
	}
	return nil, RefreshOutput{
		Checked:   result.Checked,
		Unchanged: result.Unchanged,
		Updated:   result.Updated,
		Failed:    result.Failed,
	}, nil
}

// Serve starts the server on the given transport. Only "stdio" is supported,
// matching the default ServerConfig.Transport (spec §6).
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))
	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
