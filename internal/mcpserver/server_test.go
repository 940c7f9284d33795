package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/webkb/internal/api"
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

func (f *fakeDiscoverer) Discover(context.Context, string) (*discovery.Result, error) {
	return f.result, f.err
}

type fakeQueueProcessor struct {
	summary queue.Summary
	err     error
}

func (f *fakeQueueProcessor) ProcessBatches(context.Context, int) (queue.Summary, error) {
	return f.summary, f.err
}

type fakeSearchEngine struct {
	results []search.Result
	err     error
}

func (f *fakeSearchEngine) Search(context.Context, string, search.SearchOptions) ([]search.Result, error) {
	return f.results, f.err
}

type fakeRefresher struct {
	result refresh.Result
	err    error
}

func (f *fakeRefresher) RefreshOnce(context.Context) (refresh.Result, error) {
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
	f.inserted = entries
	return f.counts, f.insertErr
}

func (f *fakeCatalogStore) Count(context.Context) (map[catalog.Status]int, error) {
	return f.byStatus, nil
}

func (f *fakeCatalogStore) CountByKind(context.Context) (map[catalog.Kind]int, error) {
	return f.byKind, nil
}

func (f *fakeCatalogStore) QuotaSnapshot(context.Context) (map[string]int, error) {
	return f.quota, nil
}

type fakeChunkCounter struct{ n int }

func (f *fakeChunkCounter) Count(context.Context) (int, error) { return f.n, nil }

func newTestServer(t *testing.T, svc *api.Service) *Server {
	t.Helper()
	s, err := NewServer(svc, nil)
	require.NoError(t, err)
	return s
}

func TestNewServer_RejectsNilService(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestHandleAddSources_RejectsEmptyInput(t *testing.T) {
	svc := &api.Service{}
	s := newTestServer(t, svc)
	_, _, err := s.handleAddSources(context.Background(), nil, AddSourcesInput{})
	assert.Error(t, err)
}

func TestHandleAddSources_DelegatesToService(t *testing.T) {
	svc := &api.Service{
		Discovery: &fakeDiscoverer{result: &discovery.Result{
			Candidates: []discovery.Candidate{{URL: "https://example.com/a", Kind: catalog.KindWebPage}},
		}},
		Catalog: &fakeCatalogStore{counts: catalog.InsertCounts{Added: 1}},
	}
	s := newTestServer(t, svc)
	_, out, err := s.handleAddSources(context.Background(), nil, AddSourcesInput{Input: "https://example.com/a"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Added)
}

func TestHandleProcessQueue_DelegatesToService(t *testing.T) {
	svc := &api.Service{Queue: &fakeQueueProcessor{summary: queue.Summary{Succeeded: 2, Failed: 1, Skipped: 3}}}
	s := newTestServer(t, svc)
	_, out, err := s.handleProcessQueue(context.Background(), nil, ProcessQueueInput{MaxBatches: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 3, out.Skipped)
}

func TestHandleSearch_RejectsEmptyQuery(t *testing.T) {
	svc := &api.Service{}
	s := newTestServer(t, svc)
	_, _, err := s.handleSearch(context.Background(), nil, SearchInput{})
	assert.Error(t, err)
}

func TestHandleSearch_MapsResultMetadata(t *testing.T) {
	svc := &api.Service{SearchEngine: &fakeSearchEngine{results: []search.Result{
		{
			Text:  "hello world",
			Score: 0.9,
			Kind:  search.ScoreKindRRF,
			Metadata: search.ResultMetadata{
				SourceURL: "https://example.com/doc",
				Kind:      string(catalog.KindWebPage),
				Domain:    "example.com",
				Summary:   "a summary",
				Topics:    []string{"go"},
			},
		},
	}}}
	s := newTestServer(t, svc)
	_, out, err := s.handleSearch(context.Background(), nil, SearchInput{Query: "hello"})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "https://example.com/doc", out.Results[0].SourceURL)
	assert.Equal(t, "a summary", out.Results[0].Summary)
	assert.Equal(t, "rrf", out.Results[0].ScoreKind)
}

func TestHandleStatus_AggregatesCollaborators(t *testing.T) {
	svc := &api.Service{
		Catalog: &fakeCatalogStore{
			byStatus: map[catalog.Status]int{catalog.StatusFetched: 4},
			byKind:   map[catalog.Kind]int{catalog.KindWebPage: 4},
			quota:    map[string]int{"search_provider": 90},
		},
		Chunks: &fakeChunkCounter{n: 12},
	}
	s := newTestServer(t, svc)
	_, out, err := s.handleStatus(context.Background(), nil, StatusInput{})
	require.NoError(t, err)
	assert.Equal(t, 12, out.ChunkCount)
	assert.Equal(t, 4, out.CatalogByStatus[catalog.StatusFetched])
	assert.Equal(t, 90, out.Quota["search_provider"])
}

func TestHandleRefreshOnce_DelegatesToService(t *testing.T) {
	svc := &api.Service{Refresher: &fakeRefresher{result: refresh.Result{Checked: 5, Updated: 2}}}
	s := newTestServer(t, svc)
	_, out, err := s.handleRefreshOnce(context.Background(), nil, RefreshInput{})
	require.NoError(t, err)
	assert.Equal(t, 5, out.Checked)
	assert.Equal(t, 2, out.Updated)
}
