// Package chunk splits a FetchedDocument into retrievable, embeddable
// units (spec §4.6). Segmentation is kind-aware: web_page/doc_site_page
// split on heading then paragraph then sentence boundaries, repo splits
// on file boundary then blank-line blocks then fixed size, and video
// splits on transcript segment boundaries. Chunks are sized 100-512
// tokens (whitespace-delimited terms) with a 50-token overlap between
// adjacent chunks of the same document; chunks carry no embedding or
// enrichment, which internal/queue attaches after chunking.
package chunk

import (
	"context"
	"time"

	"github.com/Aman-CERP/webkb/internal/fetch"
	"github.com/Aman-CERP/webkb/internal/store"
)

// Token bounds and overlap (spec §4.6).
const (
	MinChunkTokens = 100
	MaxChunkTokens = 512
	OverlapTokens  = 50
)

// Input is the document handed to a Chunker. SourceURL must already be
// catalog-normalized; DocumentID and ContentHash are derived from it and
// from Text respectively, so every chunk of a document shares both.
type Input struct {
	SourceURL  string
	Kind       string // web_page, doc_site_page, repo, video
	Domain     string
	Title      string
	Text       string
	Validators fetch.Validators
	FetchedAt  time.Time

	// TranscriptSegments is populated for Kind == "video"; when empty,
	// the video chunker falls back to treating each line of Text as a
	// segment boundary.
	TranscriptSegments []fetch.TranscriptSegment
}

// Chunker segments a document into store.Chunk records. Returned chunks
// have ChunkIndex/TotalChunks set and share DocumentID/ContentHash, but
// have no Embedding or enrichment fields populated.
type Chunker interface {
	ChunkDocument(ctx context.Context, in Input) ([]*store.Chunk, error)
}

// Router dispatches to the Chunker registered for a document's kind.
type Router struct {
	webChunker   Chunker
	repoChunker  Chunker
	videoChunker Chunker
}

// NewRouter wires the three kind-specific chunkers together.
func NewRouter(webChunker, repoChunker, videoChunker Chunker) *Router {
	return &Router{webChunker: webChunker, repoChunker: repoChunker, videoChunker: videoChunker}
}

// ChunkDocument dispatches in by Kind. web_page and doc_site_page share
// the heading-aware chunker; repo and video each get their own strategy.
func (r *Router) ChunkDocument(ctx context.Context, in Input) ([]*store.Chunk, error) {
	switch in.Kind {
	case "repo":
		return r.repoChunker.ChunkDocument(ctx, in)
	case "video":
		return r.videoChunker.ChunkDocument(ctx, in)
	default:
		return r.webChunker.ChunkDocument(ctx, in)
	}
}
