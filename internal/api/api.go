package api

import (
	"context"
	"fmt"
	"time"

	"github.com/Aman-CERP/webkb/internal/catalog"
	"github.com/Aman-CERP/webkb/internal/refresh"
	"github.com/Aman-CERP/webkb/internal/search"
)

// AddSources runs discovery over input and inserts every discovered
// candidate into the catalog, deduplicating against what is already
// there (spec §6: "add_sources(input) -> {added, skipped}").
func (s *Service) AddSources(ctx context.Context, input string) (AddSourcesResult, error) {
	result, err := s.Discovery.Discover(ctx, input)
	if err != nil {
		return AddSourcesResult{}, fmt.Errorf("discover: %w", err)
	}
	if len(result.Candidates) == 0 {
		return AddSourcesResult{}, nil
	}

	now := time.Now()
	entries := make([]catalog.Entry, len(result.Candidates))
	for i, c := range result.Candidates {
		entries[i] = catalog.Entry{
			URLHash:        catalog.Hash(c.URL),
			URL:            c.URL,
			Kind:           c.Kind,
			Status:         catalog.StatusPending,
			Priority:       c.Priority,
			DiscoveredFrom: c.DiscoveredFrom,
			AddedAt:        now,
			RefreshPolicy:  catalog.DefaultRefreshPolicy(c.Kind),
		}
	}

	counts, err := s.Catalog.InsertIfAbsent(ctx, entries)
	if err != nil {
		return AddSourcesResult{}, fmt.Errorf("insert_if_absent: %w", err)
	}
	return AddSourcesResult{Added: counts.Added, Skipped: counts.SkippedDuplicate}, nil
}

// ProcessQueue drains up to maxBatches batches of pending catalog
// entries (spec §6: "process_queue(max_batches) -> {succeeded, failed,
// skipped}"). maxBatches <= 0 means unbounded.
func (s *Service) ProcessQueue(ctx context.Context, maxBatches int) (ProcessQueueResult, error) {
	summary, err := s.Queue.ProcessBatches(ctx, maxBatches)
	if err != nil {
		return ProcessQueueResult{}, fmt.Errorf("process_batches: %w", err)
	}
	return ProcessQueueResult{Succeeded: summary.Succeeded, Failed: summary.Failed, Skipped: summary.Skipped}, nil
}

// Search runs the Retrieval Engine pipeline (spec §6: "search(query, k,
// filters, flags) -> [{text, metadata, score}]"). opts is passed through
// unmodified so callers keep full control over flags; pass
// search.DefaultSearchOptions() merged with the caller's overrides.
func (s *Service) Search(ctx context.Context, query string, opts search.SearchOptions) ([]search.Result, error) {
	results, err := s.SearchEngine.Search(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

// Status reports catalog and index counts plus the last recorded API
// quota snapshot (spec §6: "status() -> {catalog counts by status and
// kind, chunk count, quota snapshot}").
func (s *Service) Status(ctx context.Context) (StatusResult, error) {
	byStatus, err := s.Catalog.Count(ctx)
	if err != nil {
		return StatusResult{}, fmt.Errorf("count: %w", err)
	}
	byKind, err := s.Catalog.CountByKind(ctx)
	if err != nil {
		return StatusResult{}, fmt.Errorf("count_by_kind: %w", err)
	}
	chunkCount, err := s.Chunks.Count(ctx)
	if err != nil {
		return StatusResult{}, fmt.Errorf("chunk count: %w", err)
	}
	quota, err := s.Catalog.QuotaSnapshot(ctx)
	if err != nil {
		return StatusResult{}, fmt.Errorf("quota_snapshot: %w", err)
	}
	return StatusResult{
		CatalogByStatus: byStatus,
		CatalogByKind:   byKind,
		ChunkCount:      chunkCount,
		Quota:           quota,
		GeneratedAt:     time.Now(),
	}, nil
}

// RefreshOnce runs one refresh pass (spec §6: "refresh_once() ->
// {checked, unchanged, updated, failed}").
func (s *Service) RefreshOnce(ctx context.Context) (refresh.Result, error) {
	result, err := s.Refresher.RefreshOnce(ctx)
	if err != nil {
		return refresh.Result{}, fmt.Errorf("refresh_once: %w", err)
	}
	return result, nil
}

// ProcessQueueResult reports process_queue's outcome.
type ProcessQueueResult struct {
	Succeeded int
	Failed    int
	Skipped   int
}
