package chunk

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/webkb/internal/fetch"
)

func TestVideoChunker_ChunkDocument_PreservesFirstSegmentTimestamp(t *testing.T) {
	in := testInput("video", "")
	in.TranscriptSegments = []fetch.TranscriptSegment{
		{StartSeconds: 0, Text: "Welcome to the show."},
		{StartSeconds: 5, Text: "Today we cover widgets."},
		{StartSeconds: 12, Text: "Let's get started."},
	}

	chunker := NewVideoChunker()
	chunks, err := chunker.ChunkDocument(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Contains(t, chunks[0].Text, "[t=0s]")
	assert.Contains(t, chunks[0].Text, "Welcome to the show")
}

func TestVideoChunker_ChunkDocument_AggregatesUntilMinimumSize(t *testing.T) {
	in := testInput("video", "")
	for i := 0; i < 300; i++ {
		in.TranscriptSegments = append(in.TranscriptSegments, fetch.TranscriptSegment{
			StartSeconds: float64(i * 3),
			Text:         fmt.Sprintf("segment number %d with a few words in it", i),
		})
	}

	chunker := NewVideoChunker()
	chunks, err := chunker.ChunkDocument(context.Background(), in)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, estimateTokens(c.Text), MinChunkTokens)
		}
		assert.LessOrEqual(t, estimateTokens(c.Text), MaxChunkTokens+OverlapTokens)
		assert.Equal(t, "video", c.Kind)
	}
}

func TestVideoChunker_ChunkDocument_FallsBackToLineSegmentsWhenNoStructuredSegments(t *testing.T) {
	in := testInput("video", "Welcome to the show.\nToday we cover widgets.\nLet's get started.\n")

	chunker := NewVideoChunker()
	chunks, err := chunker.ChunkDocument(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[0].Text, "Welcome to the show")
}

func TestVideoChunker_ChunkDocument_NoSegmentsProducesNoChunks(t *testing.T) {
	in := testInput("video", "")
	chunker := NewVideoChunker()
	chunks, err := chunker.ChunkDocument(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
