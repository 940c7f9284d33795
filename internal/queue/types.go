// Package queue implements the Queue Processor (spec §4.9): drains the
// pending portion of the URL Catalog, dispatching each entry to its
// Fetcher (optionally via the Crawler or channel Expander first),
// chunking, embedding, and enriching the result, and writing the final
// chunks into the Vector Index.
package queue

import (
	"context"
	"time"

	"github.com/Aman-CERP/webkb/internal/catalog"
	"github.com/Aman-CERP/webkb/internal/chunk"
	"github.com/Aman-CERP/webkb/internal/crawl"
	"github.com/Aman-CERP/webkb/internal/enrich"
	"github.com/Aman-CERP/webkb/internal/fetch"
	"github.com/Aman-CERP/webkb/internal/store"
)

// Embedder is the subset of internal/embed.Embedder the processor
// needs for batch embedding a document's chunks.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Crawler is the subset of *crawl.Crawler the processor needs.
type Crawler interface {
	Crawl(ctx context.Context, startURL string) (*crawl.Result, error)
}

// CatalogStore is the subset of *catalog.Store the processor drives.
type CatalogStore interface {
	ClaimBatch(ctx context.Context, n int) ([]catalog.Entry, error)
	InsertIfAbsent(ctx context.Context, entries []catalog.Entry) (catalog.InsertCounts, error)
	MarkFetched(ctx context.Context, urlHash string, when time.Time, nextRefreshAt *time.Time) error
	MarkFailed(ctx context.Context, urlHash string, errText string, when time.Time, maxRetries int) error
}

// ChunkWriter is the subset of *store.ChunkIndex the processor needs.
// ReplaceBySourceURL deletes a document's prior chunks and adds its new
// ones under one lock acquisition, so a concurrent search never
// observes the document with zero chunks (spec §4.9 step 4, §5).
type ChunkWriter interface {
	ReplaceBySourceURL(ctx context.Context, url string, chunks []*store.Chunk) error
}

// HostLimiter abstracts internal/fetch.HostLimiter's pacing/backoff
// contract so the processor can be tested without a real rate limiter.
type HostLimiter interface {
	Wait(ctx context.Context, rawURL string) error
	RecordSuccess(rawURL string)
	RecordFailure(rawURL string)
}

// Dependencies wires every collaborator the processor dispatches to.
// Fetchers is keyed by catalog.Kind (web_page and doc_site_page share
// one HtmlFetcher entry, repo uses RepoFetcher, video uses
// VideoFetcher; video_channel has no Fetcher entry, it only goes
// through Expander).
type Dependencies struct {
	Catalog     CatalogStore
	Chunks      ChunkWriter
	Fetchers    map[catalog.Kind]fetch.Fetcher
	Expander    fetch.ChannelExpander
	Crawler     Crawler
	Chunker     chunk.Chunker
	Embedder    Embedder
	Enricher    enrich.Enricher
	HostLimiter HostLimiter
}

// Config configures batch size, concurrency, and retry limits (spec §4.9).
type Config struct {
	BatchSize           int
	ConcurrentFetches   int
	MaxRetries          int
	EnricherConcurrency int
	// CrawlEligible reports whether e's start page should be preceded
	// by a Crawler pass (spec §4.9 step 2: "Crawl-eligible web_page
	// entries are first routed through the Crawler").
	CrawlEligible func(e catalog.Entry) bool
}

// DefaultConfig returns spec §4.9's stated defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:           10,
		ConcurrentFetches:   3,
		MaxRetries:          3,
		EnricherConcurrency: 2,
	}
}

// Summary reports one ProcessBatches call's outcome (spec §6:
// "process_queue(max_batches) → {succeeded, failed, skipped}").
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
}
