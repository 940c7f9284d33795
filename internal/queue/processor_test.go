package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/webkb/internal/catalog"
	"github.com/Aman-CERP/webkb/internal/chunk"
	"github.com/Aman-CERP/webkb/internal/crawl"
	"github.com/Aman-CERP/webkb/internal/enrich"
	weberrors "github.com/Aman-CERP/webkb/internal/errors"
	"github.com/Aman-CERP/webkb/internal/fetch"
	"github.com/Aman-CERP/webkb/internal/store"
)

var errCrawlFailed = errors.New("crawl failed")

// --- fakes -----------------------------------------------------------

type fakeCatalog struct {
	mu          sync.Mutex
	pending     []catalog.Entry
	fetched     []string
	failed      []string
	failErrs    []string
	inserted    []catalog.Entry
	retryCounts map[string]int
}

func newFakeCatalog(entries ...catalog.Entry) *fakeCatalog {
	return &fakeCatalog{pending: entries, retryCounts: map[string]int{}}
}

func (f *fakeCatalog) ClaimBatch(_ context.Context, n int) ([]catalog.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, nil
	}
	if n > len(f.pending) {
		n = len(f.pending)
	}
	batch := f.pending[:n]
	f.pending = f.pending[n:]
	return batch, nil
}

func (f *fakeCatalog) InsertIfAbsent(_ context.Context, entries []catalog.Entry) (catalog.InsertCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, entries...)
	return catalog.InsertCounts{Added: len(entries)}, nil
}

func (f *fakeCatalog) MarkFetched(_ context.Context, urlHash string, _ time.Time, _ *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, urlHash)
	return nil
}

func (f *fakeCatalog) MarkFailed(_ context.Context, urlHash string, errText string, _ time.Time, maxRetries int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryCounts[urlHash]++
	if f.retryCounts[urlHash] > maxRetries {
		f.failed = append(f.failed, urlHash)
		f.failErrs = append(f.failErrs, errText)
	}
	return nil
}

type fakeChunkWriter struct {
	mu      sync.Mutex
	added   [][]*store.Chunk
	deleted []string
}

func (w *fakeChunkWriter) ReplaceBySourceURL(_ context.Context, url string, chunks []*store.Chunk) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deleted = append(w.deleted, url)
	w.added = append(w.added, chunks)
	return nil
}

type fakeFetcher struct {
	doc *fetch.FetchedDocument
	err error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*fetch.FetchedDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	d := *f.doc
	d.SourceURL = url
	return &d, nil
}

type fakeChunker struct {
	chunks []*store.Chunk
	err    error
}

func (c *fakeChunker) ChunkDocument(_ context.Context, in chunk.Input) ([]*store.Chunk, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make([]*store.Chunk, len(c.chunks))
	for i, ch := range c.chunks {
		cp := *ch
		cp.SourceURL = in.SourceURL
		out[i] = &cp
	}
	return out, nil
}

type fakeEmbedder struct {
	dim int
	err error
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dim)
	}
	return out, nil
}

type fakeEnricher struct{ calls int }

func (e *fakeEnricher) Enrich(_ context.Context, _ string) enrich.Metadata {
	e.calls++
	return enrich.Metadata{Summary: "summarized"}
}

type fakeExpander struct {
	urls []string
	err  error
}

func (x *fakeExpander) Expand(_ context.Context, _ string, _ int) ([]string, error) {
	return x.urls, x.err
}

type fakeCrawler struct {
	result *crawl.Result
	err    error
}

func (c *fakeCrawler) Crawl(_ context.Context, startURL string) (*crawl.Result, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

type noopHostLimiter struct{}

func (noopHostLimiter) Wait(context.Context, string) error { return nil }
func (noopHostLimiter) RecordSuccess(string)               {}
func (noopHostLimiter) RecordFailure(string)               {}

// --- helpers -----------------------------------------------------------

func webEntry(t *testing.T, rawURL string) catalog.Entry {
	t.Helper()
	norm, err := catalog.Normalize(rawURL)
	require.NoError(t, err)
	return catalog.Entry{
		URLHash:       catalog.Hash(norm),
		URL:           norm,
		Kind:          catalog.KindWebPage,
		Status:        catalog.StatusPending,
		Priority:      catalog.PriorityUserGiven,
		AddedAt:       time.Now(),
		RefreshPolicy: catalog.DefaultRefreshPolicy(catalog.KindWebPage),
	}
}

func oneTestChunk(text string) *store.Chunk {
	return &store.Chunk{ID: "c1", DocumentID: "d1", ChunkIndex: 0, TotalChunks: 1, Text: text}
}

// --- tests -----------------------------------------------------------

func TestProcessor_ProcessBatches_SuccessfulSingleEntry(t *testing.T) {
	e := webEntry(t, "https://example.com/a")
	cat := newFakeCatalog(e)
	chunks := &fakeChunkWriter{}
	enricher := &fakeEnricher{}

	p := NewProcessor(Dependencies{
		Catalog: cat,
		Chunks:  chunks,
		Fetchers: map[catalog.Kind]fetch.Fetcher{
			catalog.KindWebPage: &fakeFetcher{doc: &fetch.FetchedDocument{Text: "hello world", Title: "A"}},
		},
		Chunker:     &fakeChunker{chunks: []*store.Chunk{oneTestChunk("hello world")}},
		Embedder:    &fakeEmbedder{dim: 4},
		Enricher:    enricher,
		HostLimiter: noopHostLimiter{},
	}, Config{})

	sum, err := p.ProcessBatches(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, Summary{Succeeded: 1}, sum)
	assert.Equal(t, 1, enricher.calls)
	assert.Len(t, chunks.deleted, 1)
	assert.Len(t, chunks.added, 1)
	assert.Len(t, cat.fetched, 1)
}

func TestProcessor_ProcessBatches_StopsWhenCatalogEmpty(t *testing.T) {
	cat := newFakeCatalog()
	p := NewProcessor(Dependencies{Catalog: cat, HostLimiter: noopHostLimiter{}}, Config{})

	sum, err := p.ProcessBatches(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
}

func TestProcessor_ProcessBatches_RespectsMaxBatches(t *testing.T) {
	entries := []catalog.Entry{webEntry(t, "https://example.com/a"), webEntry(t, "https://example.com/b")}
	cat := newFakeCatalog(entries...)
	p := NewProcessor(Dependencies{
		Catalog: cat,
		Chunks:  &fakeChunkWriter{},
		Fetchers: map[catalog.Kind]fetch.Fetcher{
			catalog.KindWebPage: &fakeFetcher{doc: &fetch.FetchedDocument{Text: "x"}},
		},
		Chunker:     &fakeChunker{chunks: []*store.Chunk{oneTestChunk("x")}},
		Embedder:    &fakeEmbedder{dim: 2},
		HostLimiter: noopHostLimiter{},
	}, Config{BatchSize: 1})

	sum, err := p.ProcessBatches(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded+sum.Failed+sum.Skipped)
}

func TestProcessor_ProcessBatches_ContextCancelledStops(t *testing.T) {
	cat := newFakeCatalog(webEntry(t, "https://example.com/a"))
	p := NewProcessor(Dependencies{Catalog: cat}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ProcessBatches(ctx, 0)
	assert.Error(t, err)
}

func TestProcessor_FetchFailure_RetriesThenFails(t *testing.T) {
	e := webEntry(t, "https://example.com/a")
	cat := newFakeCatalog(e, e, e, e) // re-claim the same entry across 4 batches
	p := NewProcessor(Dependencies{
		Catalog: cat,
		Fetchers: map[catalog.Kind]fetch.Fetcher{
			catalog.KindWebPage: &fakeFetcher{err: weberrors.Transient("timed out", nil)},
		},
		HostLimiter: noopHostLimiter{},
	}, Config{BatchSize: 1, MaxRetries: 3})

	sum, err := p.ProcessBatches(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Failed)
	assert.Len(t, cat.failed, 1, "entry should land in terminal failed state exactly once, on the 4th attempt")
}

func TestProcessor_PermanentFetchFailure_SkipsRetryBudget(t *testing.T) {
	e := webEntry(t, "https://example.com/missing")
	cat := newFakeCatalog(e)
	p := NewProcessor(Dependencies{
		Catalog: cat,
		Fetchers: map[catalog.Kind]fetch.Fetcher{
			catalog.KindWebPage: &fakeFetcher{err: weberrors.Permanent("404 not found", nil)},
		},
		HostLimiter: noopHostLimiter{},
	}, Config{MaxRetries: 3})

	sum, err := p.ProcessBatches(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Len(t, cat.failed, 1, "a permanent error should reach terminal failed on the first attempt")
}

func TestProcessor_DeleteBeforeAdd_OrderingOnRefetch(t *testing.T) {
	e := webEntry(t, "https://example.com/a")
	cat := newFakeCatalog(e)
	chunks := &fakeChunkWriter{}

	p := NewProcessor(Dependencies{
		Catalog: cat,
		Chunks:  chunks,
		Fetchers: map[catalog.Kind]fetch.Fetcher{
			catalog.KindWebPage: &fakeFetcher{doc: &fetch.FetchedDocument{Text: "v2"}},
		},
		Chunker:     &fakeChunker{chunks: []*store.Chunk{oneTestChunk("v2")}},
		Embedder:    &fakeEmbedder{dim: 2},
		HostLimiter: noopHostLimiter{},
	}, Config{})

	_, err := p.ProcessBatches(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, chunks.deleted, 1)
	require.Len(t, chunks.added, 1)
	assert.Equal(t, e.URL, chunks.deleted[0])
}

func TestProcessor_EnrichmentFailureNeverBlocksChunkWrite(t *testing.T) {
	e := webEntry(t, "https://example.com/a")
	cat := newFakeCatalog(e)
	chunks := &fakeChunkWriter{}

	p := NewProcessor(Dependencies{
		Catalog: cat,
		Chunks:  chunks,
		Fetchers: map[catalog.Kind]fetch.Fetcher{
			catalog.KindWebPage: &fakeFetcher{doc: &fetch.FetchedDocument{Text: "x"}},
		},
		Chunker:     &fakeChunker{chunks: []*store.Chunk{oneTestChunk("x")}},
		Embedder:    &fakeEmbedder{dim: 2},
		Enricher:    &fakeEnricher{}, // Enrich never returns an error by contract
		HostLimiter: noopHostLimiter{},
	}, Config{})

	sum, err := p.ProcessBatches(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Len(t, chunks.added, 1)
}

func TestProcessor_EmbeddingFailure_NoPartialChunkWrite(t *testing.T) {
	e := webEntry(t, "https://example.com/a")
	cat := newFakeCatalog(e)
	chunks := &fakeChunkWriter{}

	p := NewProcessor(Dependencies{
		Catalog: cat,
		Chunks:  chunks,
		Fetchers: map[catalog.Kind]fetch.Fetcher{
			catalog.KindWebPage: &fakeFetcher{doc: &fetch.FetchedDocument{Text: "x"}},
		},
		Chunker:     &fakeChunker{chunks: []*store.Chunk{oneTestChunk("x")}},
		Embedder:    &fakeEmbedder{err: weberrors.Transient("embedder unreachable", nil)},
		HostLimiter: noopHostLimiter{},
	}, Config{MaxRetries: 1})

	sum, err := p.ProcessBatches(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Empty(t, chunks.added)
	assert.Empty(t, chunks.deleted)
}

func TestProcessor_NoFetcherRegistered_FailsImmediately(t *testing.T) {
	e := webEntry(t, "https://example.com/a")
	cat := newFakeCatalog(e)
	p := NewProcessor(Dependencies{Catalog: cat, Fetchers: map[catalog.Kind]fetch.Fetcher{}}, Config{MaxRetries: 5})

	sum, err := p.ProcessBatches(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Len(t, cat.failed, 1, "a missing-fetcher configuration error should not consume the retry budget")
}

func TestProcessor_VideoChannel_ExpandsWithoutChunking(t *testing.T) {
	e := catalog.Entry{
		URLHash:       "ch1",
		URL:           "https://www.youtube.com/@example",
		Kind:          catalog.KindVideoChannel,
		RefreshPolicy: catalog.NeverRefresh(),
	}
	cat := newFakeCatalog(e)
	expander := &fakeExpander{urls: []string{"https://www.youtube.com/watch?v=abc", "https://www.youtube.com/watch?v=def"}}

	p := NewProcessor(Dependencies{Catalog: cat, Expander: expander}, Config{})

	sum, err := p.ProcessBatches(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Len(t, cat.inserted, 2)
	for _, ins := range cat.inserted {
		assert.Equal(t, catalog.KindVideo, ins.Kind)
		assert.Equal(t, catalog.PriorityCrawled, ins.Priority)
	}
}

func TestProcessor_CrawlEligible_InsertsDiscoveredThenFetchesStartPage(t *testing.T) {
	e := webEntry(t, "https://docs.example.com/")
	cat := newFakeCatalog(e)
	chunks := &fakeChunkWriter{}

	p := NewProcessor(Dependencies{
		Catalog: cat,
		Chunks:  chunks,
		Fetchers: map[catalog.Kind]fetch.Fetcher{
			catalog.KindWebPage: &fakeFetcher{doc: &fetch.FetchedDocument{Text: "index"}},
		},
		Chunker:  &fakeChunker{chunks: []*store.Chunk{oneTestChunk("index")}},
		Embedder: &fakeEmbedder{dim: 2},
		Crawler: &fakeCrawler{result: &crawl.Result{
			StartURL:   e.URL,
			Discovered: []string{"https://docs.example.com/page2"},
		}},
		HostLimiter: noopHostLimiter{},
	}, Config{CrawlEligible: func(catalog.Entry) bool { return true }})

	sum, err := p.ProcessBatches(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)
	require.Len(t, cat.inserted, 1)
	assert.Contains(t, cat.inserted[0].URL, "page2")
	assert.Len(t, chunks.added, 1, "the start page is still fetched and chunked after the crawl pass")
}

func TestProcessor_CrawlFailure_StillFetchesStartPage(t *testing.T) {
	e := webEntry(t, "https://docs.example.com/")
	cat := newFakeCatalog(e)
	chunks := &fakeChunkWriter{}

	p := NewProcessor(Dependencies{
		Catalog: cat,
		Chunks:  chunks,
		Fetchers: map[catalog.Kind]fetch.Fetcher{
			catalog.KindWebPage: &fakeFetcher{doc: &fetch.FetchedDocument{Text: "index"}},
		},
		Chunker:     &fakeChunker{chunks: []*store.Chunk{oneTestChunk("index")}},
		Embedder:    &fakeEmbedder{dim: 2},
		Crawler:     &fakeCrawler{err: errCrawlFailed},
		HostLimiter: noopHostLimiter{},
	}, Config{CrawlEligible: func(catalog.Entry) bool { return true }})

	sum, err := p.ProcessBatches(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Empty(t, cat.inserted)
}
