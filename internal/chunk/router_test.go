package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_ChunkDocument_DispatchesByKind(t *testing.T) {
	router := NewRouter(NewWebChunker(), NewRepoChunker(), NewVideoChunker())

	webChunks, err := router.ChunkDocument(context.Background(), testInput("web_page", "# Title\n\nSome body text.\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, webChunks)
	assert.Equal(t, "web_page", webChunks[0].Kind)

	repoChunks, err := router.ChunkDocument(context.Background(), testInput("repo", "## a.go\n\npackage main\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, repoChunks)
	assert.Equal(t, "repo", repoChunks[0].Kind)

	docChunks, err := router.ChunkDocument(context.Background(), testInput("doc_site_page", "# Guide\n\nContent.\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, docChunks)
}
