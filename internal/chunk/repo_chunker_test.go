package chunk

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoChunker_ChunkDocument_EachFileGetsAtLeastOneChunk(t *testing.T) {
	text := "## README.md\n\nProject overview text.\n\n## src/main.go\n\npackage main\n\nfunc main() {}\n"

	chunker := NewRepoChunker()
	chunks, err := chunker.ChunkDocument(context.Background(), testInput("repo", text))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	joined := ""
	for _, c := range chunks {
		joined += c.Text + "\n"
	}
	assert.Contains(t, joined, "README.md")
	assert.Contains(t, joined, "src/main.go")
	assert.Contains(t, joined, "Project overview text")
	assert.Contains(t, joined, "func main")
}

func TestRepoChunker_ChunkDocument_SplitsWithinFileOnBlankLines(t *testing.T) {
	text := "## lib.go\n\nfunc A() {}\n\nfunc B() {}\n\nfunc C() {}\n"

	chunker := NewRepoChunker()
	chunks, err := chunker.ChunkDocument(context.Background(), testInput("repo", text))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	joined := ""
	for _, c := range chunks {
		joined += c.Text
	}
	assert.Contains(t, joined, "func A()")
	assert.Contains(t, joined, "func B()")
	assert.Contains(t, joined, "func C()")
}

func TestRepoChunker_ChunkDocument_LargeFileFallsBackToFixedSize(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("## big.go\n\n")
	for i := 0; i < 2000; i++ {
		sb.WriteString(fmt.Sprintf("line%d ", i))
	}

	chunker := NewRepoChunker()
	chunks, err := chunker.ChunkDocument(context.Background(), testInput("repo", sb.String()))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, estimateTokens(c.Text), MaxChunkTokens+OverlapTokens)
		assert.Equal(t, "repo", c.Kind)
	}
}

func TestRepoChunker_ChunkDocument_NoFileHeadersTreatsWholeTextAsOneFile(t *testing.T) {
	text := "plain text content with no file markers at all.\n"

	chunker := NewRepoChunker()
	chunks, err := chunker.ChunkDocument(context.Background(), testInput("repo", text))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "plain text content")
}
