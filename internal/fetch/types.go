// Package fetch retrieves a FetchedDocument for each CatalogEntry kind
// (spec §4.4): HtmlFetcher, RepoFetcher, VideoFetcher, VideoChannelExpander.
package fetch

import (
	"context"
	"time"
)

// Validators carry the cheap-check fields the Refresher compares against
// on the next pass (spec §4.10).
type Validators struct {
	HTTPLastModified string
	HTTPETag         string
	CommitID         string
	StatusCode       int
	ContentType      string
}

// FetchedDocument is the normalized output of any Fetcher.
type FetchedDocument struct {
	Text       string // normalized UTF-8 markdown/plain text
	Title      string
	Language   string
	Kind       string
	SourceURL  string
	Validators Validators

	// Kind-specific attributes.
	DurationSeconds int                  // video
	StarCount       int                  // repo
	ChannelTitle    string               // video discovered via channel expansion
	Segments        []TranscriptSegment  // video: raw transcript segments, for the Chunker
}

// Fetcher retrieves a single FetchedDocument for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// ChannelExpander enumerates video URLs reachable from a channel URL.
type ChannelExpander interface {
	Expand(ctx context.Context, channelURL string, max int) ([]string, error)
}

const (
	// DefaultMaxRepoFileBytes caps a single file read from a cloned repo.
	DefaultMaxRepoFileBytes = 1 << 20 // 1 MB

	// DefaultPartialCloneTimeout bounds the include-dirs walk of the cloned tree.
	DefaultPartialCloneTimeout = 60 * time.Second

	// DefaultFullCloneTimeout bounds the full-tree walk fallback.
	DefaultFullCloneTimeout = 120 * time.Second

	// DefaultRepoAcquireCeiling is the absolute ceiling across both attempts.
	DefaultRepoAcquireCeiling = 180 * time.Second
)

// RepoIncludeDirs are the typical directories worth reading for a
// documentation/code knowledge base (spec §4.4).
var RepoIncludeDirs = []string{
	"docs", "doc", "documentation", "src", "lib", "examples", "samples",
	"scripts", "bin", "notebooks", "tests", "test",
}

// RepoExcludeDirs are build/vendor directories never worth reading.
var RepoExcludeDirs = []string{
	"node_modules", "vendor", ".git", "dist", "build", "target",
	".venv", "venv", "__pycache__", ".next", ".cache",
}
