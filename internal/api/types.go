// Package api exposes the five operations spec §6 names as the system's
// external contract (add_sources, process_queue, search, status,
// refresh_once), wiring internal/discovery, internal/queue,
// internal/search, and internal/refresh behind one narrow surface that
// cmd/webkb and internal/mcpserver both call into.
package api

import (
	"context"
	"time"

	"github.com/Aman-CERP/webkb/internal/catalog"
	"github.com/Aman-CERP/webkb/internal/discovery"
	"github.com/Aman-CERP/webkb/internal/queue"
	"github.com/Aman-CERP/webkb/internal/refresh"
	"github.com/Aman-CERP/webkb/internal/search"
)

// Discoverer is the subset of *discovery.Orchestrator add_sources needs.
type Discoverer interface {
	Discover(ctx context.Context, input string) (*discovery.Result, error)
}

// QueueProcessor is the subset of *queue.Processor process_queue needs.
type QueueProcessor interface {
	ProcessBatches(ctx context.Context, maxBatches int) (queue.Summary, error)
}

// SearchEngine is the subset of *search.Engine search needs.
type SearchEngine interface {
	Search(ctx context.Context, query string, opts search.SearchOptions) ([]search.Result, error)
}

// Refresher is the subset of *refresh.Refresher refresh_once needs.
type Refresher interface {
	RefreshOnce(ctx context.Context) (refresh.Result, error)
}

// CatalogStore is the subset of *catalog.Store add_sources and status need.
type CatalogStore interface {
	InsertIfAbsent(ctx context.Context, entries []catalog.Entry) (catalog.InsertCounts, error)
	Count(ctx context.Context) (map[catalog.Status]int, error)
	CountByKind(ctx context.Context) (map[catalog.Kind]int, error)
	QuotaSnapshot(ctx context.Context) (map[string]int, error)
}

// ChunkCounter is the subset of *store.ChunkIndex status needs.
type ChunkCounter interface {
	Count(ctx context.Context) (int, error)
}

// Service wires every collaborator behind the five spec §6 operations.
type Service struct {
	Catalog      CatalogStore
	Chunks       ChunkCounter
	Discovery    Discoverer
	Queue        QueueProcessor
	SearchEngine SearchEngine
	Refresher    Refresher
}

// AddSourcesResult reports add_sources' outcome (spec §6: "add_sources
// (input) -> {added, skipped}").
type AddSourcesResult struct {
	Added   int
	Skipped int
}

// StatusResult reports status's outcome (spec §6: "status() -> {catalog
// counts by status and kind, chunk count, quota snapshot}").
type StatusResult struct {
	CatalogByStatus map[catalog.Status]int
	CatalogByKind   map[catalog.Kind]int
	ChunkCount      int
	Quota           map[string]int
	GeneratedAt     time.Time
}
