package search

import (
	"context"

	"github.com/Aman-CERP/webkb/internal/store"
)

// Default tuning constants for the Retrieval Engine (spec §4.11).
const (
	// DefaultK is the result count returned when SearchOptions.K is unset.
	DefaultK = 10

	// DefaultSimilarityThreshold is applied to pure semantic (cosine) scores
	// when the caller does not request reranking and sets no explicit
	// threshold (spec §4.11 step 5).
	DefaultSimilarityThreshold = 0.3

	// MaxExpansionQueryWords bounds the queries eligible for LLM expansion;
	// longer queries are assumed already specific enough (spec §4.11 step 1).
	MaxExpansionQueryWords = 15
)

// ScoreKind tags what a SearchResult.Score actually measures, since the
// pipeline's final stage determines its meaning (spec §4.11: "ordered
// (text, metadata, score) with score semantics tagged").
type ScoreKind string

const (
	ScoreKindCosine ScoreKind = "cosine_similarity"
	ScoreKindRRF    ScoreKind = "rrf"
	ScoreKindRerank ScoreKind = "rerank"
)

// Weights controls the relative contribution of each retrieval source to
// Reciprocal Rank Fusion (spec §4.11 step 3: w_s=0.7, w_k=0.3).
type Weights struct {
	Semantic float64
	Lexical  float64
}

// DefaultWeights returns the spec's default RRF weights.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.7, Lexical: 0.3}
}

// SearchOptions configures one Search call. Zero-value fields take the
// documented defaults; a nil Threshold defers to the semantic-only default
// described on DefaultSimilarityThreshold.
type SearchOptions struct {
	K         int
	Filter    store.Filter
	Hybrid    bool // use the lexical index alongside semantic retrieval, when available
	Reranking bool // cross-encoder rerank of the fused/retrieved set
	Expansion bool // LLM query expansion for short queries
	Weights   Weights
	Threshold *float64
}

// DefaultSearchOptions returns the spec's default flag values: hybrid,
// reranking, and expansion all on, K=DefaultK, weights at their defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		K:         DefaultK,
		Hybrid:    true,
		Reranking: true,
		Expansion: true,
		Weights:   DefaultWeights(),
	}
}

// Result is one ranked hit: the chunk's text and metadata plus a score
// whose meaning is given by Kind (spec §6: "search(...) -> [{text,
// metadata, score}]").
type Result struct {
	Text     string
	Metadata ResultMetadata
	Score    float64
	Kind     ScoreKind
}

// ResultMetadata is the subset of a chunk's stored metadata surfaced to
// search callers.
type ResultMetadata struct {
	ChunkID    string
	SourceURL  string
	Kind       string
	Domain     string
	Topics     []string
	Keywords   []string
	Summary    string
	Concepts   []string
	Difficulty string
	Languages  []string
	Frameworks []string
}

// QueryExpander turns a short query into a richer phrase before retrieval
// (spec §4.11 step 1). Implementations must return the original query
// verbatim, not an error, when expansion would not help.
type QueryExpander interface {
	Expand(ctx context.Context, query string) (string, error)
}
