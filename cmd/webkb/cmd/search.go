package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/webkb/internal/config"
	"github.com/Aman-CERP/webkb/internal/search"
	"github.com/Aman-CERP/webkb/internal/store"
)

type searchFlags struct {
	k         int
	kind      string
	domain    string
	hybrid    bool
	rerank    bool
	expansion bool
	threshold float64
}

func newSearchCmd() *cobra.Command {
	var flags searchFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed knowledge base",
		Long: `search runs the Retrieval Engine (spec §4.11): optional query
expansion, semantic and (if enabled) lexical retrieval fused by
Reciprocal Rank Fusion, optional cross-encoder reranking, and
similarity thresholding.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), strings.Join(args, " "), flags)
		},
	}
	cmd.Flags().IntVarP(&flags.k, "limit", "n", 0, "Maximum number of results (0 = config default)")
	cmd.Flags().StringVar(&flags.kind, "kind", "", "Filter by catalog kind (web_page, doc_site_page, repo, video)")
	cmd.Flags().StringVar(&flags.domain, "domain", "", "Filter by source domain")
	cmd.Flags().BoolVar(&flags.hybrid, "hybrid", true, "Fuse semantic and lexical retrieval")
	cmd.Flags().BoolVar(&flags.rerank, "rerank", true, "Apply cross-encoder reranking")
	cmd.Flags().BoolVar(&flags.expansion, "expand", false, "Expand the query via LLM before retrieval")
	cmd.Flags().Float64Var(&flags.threshold, "threshold", -1, "Drop results below this similarity score (-1 = engine default: 0.3 on semantic-only, non-reranked results)")
	return cmd
}

func runSearch(ctx context.Context, query string, flags searchFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return exitErr(err)
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return exitErr(err)
	}
	defer a.Close()

	opts := searchOptionsFromFlags(cfg, flags)
	results, err := a.svc.Search(ctx, query, opts)
	if err != nil {
		return exitErr(err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmdOut())
		return enc.Encode(results)
	}
	for i, r := range results {
		fmt.Printf("%d. [%.3f %s] %s\n   %s\n", i+1, r.Score, r.Kind, r.Metadata.SourceURL, truncate(r.Text, 160))
	}
	return nil
}

func searchOptionsFromFlags(cfg *config.Config, flags searchFlags) search.SearchOptions {
	opts := search.DefaultSearchOptions()
	opts.K = cfg.Search.MaxResults
	if flags.k > 0 {
		opts.K = flags.k
	}
	opts.Hybrid = flags.hybrid && cfg.Search.EnableHybrid
	opts.Reranking = flags.rerank && cfg.Search.EnableRerank
	opts.Expansion = flags.expansion && cfg.Search.EnableExpansion
	opts.Weights = search.Weights{Semantic: cfg.Search.SemanticWeight, Lexical: cfg.Search.LexicalWeight}
	opts.Filter = store.Filter{Kind: flags.kind, Domain: flags.domain}
	if flags.threshold >= 0 {
		opts.Threshold = &flags.threshold
	}
	return opts
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
