// Package discovery implements the Discovery Orchestrator (spec §4.8):
// translating a free-form string into a set of candidate URLs, either
// by extracting literal URLs or by synthesizing search queries against
// a pluggable web-search provider.
package discovery

import (
	"context"

	"github.com/Aman-CERP/webkb/internal/catalog"
)

// Candidate is one URL surfaced by the Orchestrator, carrying the kind
// and priority the Catalog's insert_if_absent needs.
type Candidate struct {
	URL            string
	Kind           catalog.Kind
	Priority       int
	DiscoveredFrom string
}

// Result is the Discovery Orchestrator's output: the candidates found
// and which path produced them, for the caller's API-call log.
type Result struct {
	Candidates []Candidate
	Mode       Mode
}

// Mode records which branch of spec §4.8 produced a Result.
type Mode string

const (
	ModeURLs     Mode = "urls"
	ModePrompt   Mode = "prompt"
	ModeFallback Mode = "fallback_literal"
)

// SearchResult is one hit returned by a SearchProvider.
type SearchResult struct {
	URL      string
	Title    string
	Snippet  string
	Relevance float64
}

// SearchProvider abstracts the external web-search API (spec §6:
// "the integration is abstracted behind a single interface; swapping
// providers requires only changing the adapter").
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// QuerySynthesizer turns a prompt into a list of search queries, and
// optionally names competing/alternative technologies for a second
// discovery pass (spec §4.8 step 3).
type QuerySynthesizer interface {
	SynthesizeQueries(ctx context.Context, prompt string) ([]string, error)
	SynthesizeAlternatives(ctx context.Context, prompt string) ([]string, error)
}
