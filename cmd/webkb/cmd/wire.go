package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/webkb/internal/api"
	"github.com/Aman-CERP/webkb/internal/catalog"
	"github.com/Aman-CERP/webkb/internal/chunk"
	"github.com/Aman-CERP/webkb/internal/config"
	"github.com/Aman-CERP/webkb/internal/crawl"
	"github.com/Aman-CERP/webkb/internal/discovery"
	"github.com/Aman-CERP/webkb/internal/embed"
	"github.com/Aman-CERP/webkb/internal/enrich"
	"github.com/Aman-CERP/webkb/internal/fetch"
	"github.com/Aman-CERP/webkb/internal/queue"
	"github.com/Aman-CERP/webkb/internal/refresh"
	"github.com/Aman-CERP/webkb/internal/search"
	"github.com/Aman-CERP/webkb/internal/store"
)

// app holds every long-lived collaborator so commands can close them
// cleanly on exit.
type app struct {
	cfg     *config.Config
	catalog *catalog.Store
	chunks  *store.ChunkIndex
	embedder embed.Embedder
	svc     *api.Service
}

// buildApp wires the full dependency graph from cfg, mirroring
// internal/queue.Dependencies and internal/refresh.Dependencies'
// shape (spec §4.9/§4.10). Every fetcher kind that needs network access
// shares one HostLimiter, enforcing spec §5's one-fetch-per-host rule.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.CatalogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Paths.VectorStorePath, 0o755); err != nil {
		return nil, fmt.Errorf("create vector store dir: %w", err)
	}

	catalogStore, err := catalog.Open(cfg.Paths.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	embedder, err := embed.NewEmbedder(ctx, embed.ProviderType(cfg.Embeddings.Provider), cfg.Embeddings.Model)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	cachedEmbedder := embed.NewCachedEmbedderWithDefaults(embedder)

	vectors, err := store.NewHNSWStore(store.VectorStoreConfig{
		Dimensions: cfg.Embeddings.Dimension,
		Metric:     "cos",
	})
	if err != nil {
		return nil, fmt.Errorf("build vector store: %w", err)
	}
	lexical, err := store.NewBM25IndexWithBackend(filepath.Join(cfg.Paths.VectorStorePath, "bm25"), store.BM25Config{K1: 1.2, B: 0.75}, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("build lexical index: %w", err)
	}
	chunks, err := store.OpenChunkIndex(filepath.Join(cfg.Paths.VectorStorePath, "chunks.db"), vectors, lexical)
	if err != nil {
		return nil, fmt.Errorf("open chunk index: %w", err)
	}

	hostLimiter := fetch.NewHostLimiter(cfg.Fetch.PerHostRatePerSecond)
	htmlFetcher := fetch.NewHTMLFetcher(fetch.HTMLFetcherConfig{
		Timeout:      time.Duration(cfg.Fetch.HTTPTimeoutSeconds) * time.Second,
		MaxBytes:     8 * 1000 * 1000,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxRedirects: 10,
	}, hostLimiter, nil)
	repoFetcher := fetch.NewRepoFetcher(fetch.RepoFetcherConfig{
		PartialTimeout: time.Duration(cfg.Fetch.RepoPartialTimeoutSeconds) * time.Second,
		FullTimeout:    time.Duration(cfg.Fetch.RepoFullTimeoutSeconds) * time.Second,
		AcquireCeiling: time.Duration(cfg.Fetch.RepoAbsoluteTimeoutSeconds) * time.Second,
		MaxFileBytes:   cfg.Fetch.RepoMaxFileBytes,
	})
	videoFetcher := fetch.NewVideoFetcher(fetch.VideoFetcherConfig{
		BaseURL: cfg.Fetch.TranscriptEndpoint,
		Timeout: time.Duration(cfg.Fetch.HTTPTimeoutSeconds) * time.Second,
	})
	channelExpander := fetch.NewVideoChannelExpander(fetch.VideoChannelExpanderConfig{
		BaseURL:   cfg.Fetch.TranscriptEndpoint,
		MaxVideos: cfg.Fetch.ChannelMaxVideos,
	})

	fetchers := map[catalog.Kind]fetch.Fetcher{
		catalog.KindWebPage:     htmlFetcher,
		catalog.KindDocSitePage: htmlFetcher,
		catalog.KindRepo:        repoFetcher,
		catalog.KindVideo:       videoFetcher,
	}

	chunker := chunk.NewRouter(chunk.NewWebChunker(), chunk.NewRepoChunker(), chunk.NewVideoChunker())

	enricher := enrich.New(enrich.Config{
		Endpoint: cfg.LLM.Endpoint,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.EnrichmentModel,
		Timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})

	crawler := crawl.New(crawl.Config{
		MaxPages:      cfg.Crawl.MaxPages,
		SoftTimeBound: time.Duration(cfg.Crawl.SoftTimeBoundSecs) * time.Second,
	}, hostLimiter)

	synthesizer := discovery.NewLLMQuerySynthesizer(discovery.LLMConfig{
		Endpoint: cfg.LLM.Endpoint,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.QueryModel,
		Timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	provider := discovery.NewHTTPSearchProvider(discovery.HTTPSearchProviderConfig{
		Endpoint: cfg.Discovery.SearchProviderEndpoint,
		APIKey:   cfg.Discovery.SearchProviderAPIKey,
	})
	orchestrator := discovery.NewOrchestrator(synthesizer, provider, discovery.Config{
		EnableCompetitorQueries: cfg.Discovery.EnableCompetitorQueries,
	})

	processor := queue.NewProcessor(queue.Dependencies{
		Catalog:     catalogStore,
		Chunks:      chunks,
		Fetchers:    fetchers,
		Expander:    channelExpander,
		Crawler:     crawler,
		Chunker:     chunker,
		Embedder:    cachedEmbedder,
		Enricher:    enricher,
		HostLimiter: hostLimiter,
	}, queue.Config{
		BatchSize:           cfg.Queue.BatchSize,
		ConcurrentFetches:   cfg.Queue.ConcurrentWorkers,
		MaxRetries:          cfg.Queue.MaxRetries,
		EnricherConcurrency: cfg.Queue.EnricherConcurrency,
	})

	var reranker search.Reranker = search.NoOpReranker{}
	expander := search.NewLLMQueryExpander(search.LLMExpanderConfig{
		Endpoint: cfg.LLM.Endpoint,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.QueryModel,
		Timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	engine := search.NewEngine(chunks, cachedEmbedder, search.WithReranker(reranker), search.WithQueryExpander(expander))

	checker := refresh.NewHTTPHeadChecker(cfg.Fetch.UserAgent)
	refresher := refresh.NewRefresher(refresh.Dependencies{
		Catalog:  catalogStore,
		Chunks:   chunks,
		Checker:  checker,
		Fetchers: fetchers,
		Chunker:  chunker,
		Embedder: cachedEmbedder,
		Enricher: enricher,
	}, refresh.Config{BatchSize: cfg.Refresh.BatchSize})

	svc := &api.Service{
		Catalog:      catalogStore,
		Chunks:       chunks,
		Discovery:    orchestrator,
		Queue:        processor,
		SearchEngine: engine,
		Refresher:    refresher,
	}

	return &app{cfg: cfg, catalog: catalogStore, chunks: chunks, embedder: cachedEmbedder, svc: svc}, nil
}

func (a *app) Close() {
	if a.catalog != nil {
		_ = a.catalog.Close()
	}
	if a.chunks != nil {
		_ = a.chunks.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
}
