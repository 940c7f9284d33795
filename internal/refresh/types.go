// Package refresh implements the Refresher (spec §4.9/§6): periodically
// re-checks previously fetched catalog entries and re-indexes the ones
// that changed.
package refresh

import (
	"context"
	"time"

	"github.com/Aman-CERP/webkb/internal/catalog"
	"github.com/Aman-CERP/webkb/internal/chunk"
	"github.com/Aman-CERP/webkb/internal/enrich"
	"github.com/Aman-CERP/webkb/internal/fetch"
	"github.com/Aman-CERP/webkb/internal/store"
)

// Embedder is the subset of internal/embed.Embedder the Refresher needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CatalogStore is the subset of *catalog.Store the Refresher drives.
type CatalogStore interface {
	DueForRefresh(ctx context.Context, now time.Time, limit int) ([]catalog.Entry, error)
	MarkFetched(ctx context.Context, urlHash string, when time.Time, nextRefreshAt *time.Time) error
	MarkFailed(ctx context.Context, urlHash string, errText string, when time.Time, maxRetries int) error
}

// ChunkStore is the subset of *store.ChunkIndex the Refresher needs:
// reading a document's prior chunks (to recover its last-seen
// Validators for the cheap-check) and atomically swapping in new ones.
type ChunkStore interface {
	GetBySourceURL(ctx context.Context, url string) ([]*store.Chunk, error)
	ReplaceBySourceURL(ctx context.Context, url string, chunks []*store.Chunk) error
}

// Dependencies wires every collaborator the Refresher dispatches to.
// Fetchers and Chunker/Embedder/Enricher mirror internal/queue's shape,
// since a changed document goes through the same fetch-chunk-embed-
// enrich pipeline as a fresh one (spec §4.9 steps 3-5).
type Dependencies struct {
	Catalog  CatalogStore
	Chunks   ChunkStore
	Checker  CheapChecker
	Fetchers map[catalog.Kind]fetch.Fetcher
	Chunker  chunk.Chunker
	Embedder Embedder
	Enricher enrich.Enricher
}

// Config bounds one refresh_once pass (spec §6: "refresh_once() →
// {checked, unchanged, updated, failed}").
type Config struct {
	BatchSize int
}

// DefaultConfig returns spec defaults.
func DefaultConfig() Config {
	return Config{BatchSize: 10}
}

// Result reports one RefreshOnce call's outcome.
type Result struct {
	Checked   int
	Unchanged int
	Updated   int
	Failed    int
}
