package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/webkb/internal/catalog"
	"github.com/Aman-CERP/webkb/internal/discovery"
	"github.com/Aman-CERP/webkb/internal/queue"
	"github.com/Aman-CERP/webkb/internal/refresh"
	"github.com/Aman-CERP/webkb/internal/search"
)

type fakeDiscoverer struct {
	result *discovery.Result
	err    error
}

func (f *fakeDiscoverer) Discover(_ context.Context, _ string) (*discovery.Result, error) {
	return f.result, f.err
}

type fakeQueueProcessor struct {
	summary queue.Summary
	err     error
}

func (f *fakeQueueProcessor) ProcessBatches(_ context.Context, _ int) (queue.Summary, error) {
	return f.summary, f.err
}

type fakeSearchEngine struct {
	results []search.Result
	err     error
}

func (f *fakeSearchEngine) Search(_ context.Context, _ string, _ search.SearchOptions) ([]search.Result, error) {
	return f.results, f.err
}

type fakeRefresher struct {
	result refresh.Result
	err    error
}

func (f *fakeRefresher) RefreshOnce(_ context.Context) (refresh.Result, error) {
	return f.result, f.err
}

type fakeCatalogStore struct {
	inserted  []catalog.Entry
	counts    catalog.InsertCounts
	byStatus  map[catalog.Status]int
	byKind    map[catalog.Kind]int
	quota     map[string]int
	insertErr error
}

func (f *fakeCatalogStore) InsertIfAbsent(_ context.Context, entries []catalog.Entry) (catalog.InsertCounts, error) {
	if f.insertErr != nil {
		return catalog.InsertCounts{}, f.insertErr
	}
	f.inserted = append(f.inserted, entries...)
	return f.counts, nil
}

func (f *fakeCatalogStore) Count(_ context.Context) (map[catalog.Status]int, error) {
	return f.byStatus, nil
}

func (f *fakeCatalogStore) CountByKind(_ context.Context) (map[catalog.Kind]int, error) {
	return f.byKind, nil
}

func (f *fakeCatalogStore) QuotaSnapshot(_ context.Context) (map[string]int, error) {
	return f.quota, nil
}

type fakeChunkCounter struct {
	n int
}

func (f *fakeChunkCounter) Count(_ context.Context) (int, error) { return f.n, nil }

func TestAddSources_InsertsDiscoveredCandidates(t *testing.T) {
	cat := &fakeCatalogStore{counts: catalog.InsertCounts{Added: 2, SkippedDuplicate: 1}}
	svc := &Service{
		Catalog: cat,
		Discovery: &fakeDiscoverer{result: &discovery.Result{
			Candidates: []discovery.Candidate{
				{URL: "https://example.com/a", Kind: catalog.KindWebPage, Priority: catalog.PriorityUserGiven},
				{URL: "https://example.com/b", Kind: catalog.KindRepo, Priority: catalog.PriorityUserGiven},
			},
			Mode: discovery.ModeURLs,
		}},
	}

	result, err := svc.AddSources(context.Background(), "https://example.com/a https://example.com/b")
	require.NoError(t, err)
	assert.Equal(t, AddSourcesResult{Added: 2, Skipped: 1}, result)
	require.Len(t, cat.inserted, 2)
	assert.Equal(t, catalog.StatusPending, cat.inserted[0].Status)
}

func TestAddSources_EmptyCandidatesShortCircuits(t *testing.T) {
	cat := &fakeCatalogStore{}
	svc := &Service{Catalog: cat, Discovery: &fakeDiscoverer{result: &discovery.Result{}}}

	result, err := svc.AddSources(context.Background(), "nonsense")
	require.NoError(t, err)
	assert.Equal(t, AddSourcesResult{}, result)
	assert.Empty(t, cat.inserted)
}

func TestProcessQueue_ReturnsSummary(t *testing.T) {
	svc := &Service{Queue: &fakeQueueProcessor{summary: queue.Summary{Succeeded: 3, Failed: 1, Skipped: 2}}}

	result, err := svc.ProcessQueue(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, ProcessQueueResult{Succeeded: 3, Failed: 1, Skipped: 2}, result)
}

func TestSearch_DelegatesToEngine(t *testing.T) {
	svc := &Service{SearchEngine: &fakeSearchEngine{results: []search.Result{{Text: "hit"}}}}

	results, err := svc.Search(context.Background(), "q", search.DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hit", results[0].Text)
}

func TestStatus_AggregatesAllCollaborators(t *testing.T) {
	svc := &Service{
		Catalog: &fakeCatalogStore{
			byStatus: map[catalog.Status]int{catalog.StatusPending: 4},
			byKind:   map[catalog.Kind]int{catalog.KindWebPage: 4},
			quota:    map[string]int{"search_provider": 97},
		},
		Chunks: &fakeChunkCounter{n: 12},
	}

	result, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.CatalogByStatus[catalog.StatusPending])
	assert.Equal(t, 4, result.CatalogByKind[catalog.KindWebPage])
	assert.Equal(t, 12, result.ChunkCount)
	assert.Equal(t, 97, result.Quota["search_provider"])
}

func TestRefreshOnce_DelegatesToRefresher(t *testing.T) {
	svc := &Service{Refresher: &fakeRefresher{result: refresh.Result{Checked: 5, Updated: 2}}}

	result, err := svc.RefreshOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, refresh.Result{Checked: 5, Updated: 2}, result)
}
