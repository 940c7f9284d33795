package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunkIndex(t *testing.T) *ChunkIndex {
	t.Helper()
	vs, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)

	idx, err := OpenChunkIndex("", vs, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func makeChunk(id, sourceURL, kind, domain string, vec []float32) *Chunk {
	return &Chunk{
		ID:          id,
		DocumentID:  "doc-" + sourceURL,
		ChunkIndex:  0,
		TotalChunks: 1,
		Embedding:   vec,
		Text:        "hello world from " + sourceURL,
		SourceURL:   sourceURL,
		Kind:        kind,
		Domain:      domain,
		ContentHash: "hash-" + id,
		FetchedAt:   time.Now().UTC(),
	}
}

func TestChunkIndex_AddAndGetBySourceURL(t *testing.T) {
	idx := newTestChunkIndex(t)
	ctx := context.Background()

	c := makeChunk("c1", "https://example.com/a", "web_page", "example.com", []float32{1, 0, 0, 0})
	require.NoError(t, idx.Add(ctx, []*Chunk{c}))

	got, err := idx.GetBySourceURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, "hash-c1", got[0].ContentHash)
}

func TestChunkIndex_DeleteBySourceURL_RemovesFromAllStores(t *testing.T) {
	idx := newTestChunkIndex(t)
	ctx := context.Background()

	c1 := makeChunk("c1", "https://example.com/a", "web_page", "example.com", []float32{1, 0, 0, 0})
	c2 := makeChunk("c2", "https://example.com/a", "web_page", "example.com", []float32{0, 1, 0, 0})
	require.NoError(t, idx.Add(ctx, []*Chunk{c1, c2}))

	require.NoError(t, idx.DeleteBySourceURL(ctx, "https://example.com/a"))

	got, err := idx.GetBySourceURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.Empty(t, got)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, idx.vectors.Count())
}

func TestChunkIndex_Search_ReturnsSimilarityFromDistance(t *testing.T) {
	idx := newTestChunkIndex(t)
	ctx := context.Background()

	c := makeChunk("c1", "https://example.com/a", "web_page", "example.com", []float32{1, 0, 0, 0})
	require.NoError(t, idx.Add(ctx, []*Chunk{c}))

	hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 5, Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].Chunk.ID)
	assert.InDelta(t, 1.0/(1.0+hits[0].Distance), hits[0].Similarity, 1e-6)
}

func TestChunkIndex_Search_FiltersByKindAndDomain(t *testing.T) {
	idx := newTestChunkIndex(t)
	ctx := context.Background()

	web := makeChunk("c1", "https://example.com/a", "web_page", "example.com", []float32{1, 0, 0, 0})
	repo := makeChunk("c2", "https://github.com/a/b", "repo", "github.com", []float32{1, 0, 0, 0})
	require.NoError(t, idx.Add(ctx, []*Chunk{web, repo}))

	hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 5, Filter{Kind: "repo"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c2", hits[0].Chunk.ID)
}

func TestChunkIndex_Stats_CountsChunksAndDistinctDocuments(t *testing.T) {
	idx := newTestChunkIndex(t)
	ctx := context.Background()

	c1 := makeChunk("c1", "https://example.com/a", "web_page", "example.com", []float32{1, 0, 0, 0})
	c2 := makeChunk("c2", "https://example.com/a", "web_page", "example.com", []float32{0, 1, 0, 0})
	c3 := makeChunk("c3", "https://example.com/b", "web_page", "example.com", []float32{0, 0, 1, 0})
	require.NoError(t, idx.Add(ctx, []*Chunk{c1, c2, c3}))

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ChunkCount)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Equal(t, 3, stats.VectorCount)
}

func TestChunkIndex_Add_ReplacesExistingID(t *testing.T) {
	idx := newTestChunkIndex(t)
	ctx := context.Background()

	c := makeChunk("c1", "https://example.com/a", "web_page", "example.com", []float32{1, 0, 0, 0})
	require.NoError(t, idx.Add(ctx, []*Chunk{c}))

	updated := makeChunk("c1", "https://example.com/a", "web_page", "example.com", []float32{0, 1, 0, 0})
	updated.Text = "updated text"
	require.NoError(t, idx.Add(ctx, []*Chunk{updated}))

	got, err := idx.GetBySourceURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "updated text", got[0].Text)
}
