package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/webkb/internal/store"
)

// ChunkSearcher is the subset of *store.ChunkIndex the Retrieval Engine
// needs: raw ranked retrieval from each index plus by-id hydration for
// the fused candidate set.
type ChunkSearcher interface {
	SearchVectorRaw(ctx context.Context, queryVector []float32, k int) ([]*store.VectorResult, error)
	SearchLexicalRaw(ctx context.Context, query string, k int) ([]*store.BM25Result, error)
	GetByID(ctx context.Context, id string) (*store.Chunk, bool, error)
}

// QueryEmbedder is the subset of internal/embed.Embedder the Retrieval
// Engine needs to embed a single query string.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine is the Retrieval Engine (spec §4.11): it embeds a query, fans it
// out to the semantic and (optionally) lexical indexes, fuses the two
// ranked lists with RRF, optionally reranks with a cross-encoder, and
// optionally drops results below a similarity threshold.
type Engine struct {
	chunks   ChunkSearcher
	embedder QueryEmbedder
	fusion   *RRFFusion
	reranker Reranker
	expander QueryExpander
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithReranker installs a cross-encoder Reranker. Without one, reranking
// is silently skipped regardless of SearchOptions.Reranking (spec §4.11
// step 4: "cross-encoder unavailable -> return pre-rerank order").
func WithReranker(r Reranker) Option {
	return func(e *Engine) { e.reranker = r }
}

// WithQueryExpander installs an LLM-backed query expander. Without one,
// expansion is silently skipped regardless of SearchOptions.Expansion.
func WithQueryExpander(qe QueryExpander) Option {
	return func(e *Engine) { e.expander = qe }
}

// NewEngine builds an Engine against chunks (the Vector/Lexical Index
// wrapper) and embedder (the query-side embedding call site).
func NewEngine(chunks ChunkSearcher, embedder QueryEmbedder, opts ...Option) *Engine {
	e := &Engine{
		chunks:   chunks,
		embedder: embedder,
		fusion:   NewRRFFusion(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs the full retrieval pipeline and returns up to opts.K ranked
// results (spec §4.11, §6 "search").
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search: query must not be empty")
	}
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}

	effectiveQuery := e.maybeExpand(ctx, query, opts)

	kRetrieval := 2 * opts.K
	if kRetrieval < 2*DefaultK {
		kRetrieval = 2 * DefaultK
	}

	queryVector, err := e.embedder.Embed(ctx, effectiveQuery)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	vecHits, err := e.chunks.SearchVectorRaw(ctx, queryVector, kRetrieval)
	if err != nil {
		return nil, fmt.Errorf("search: vector retrieval: %w", err)
	}

	var lexHits []*store.BM25Result
	if opts.Hybrid {
		// A missing lexical index falls back to semantic-only, silently
		// (spec §4.11: "missing lexical index -> silently fall back").
		lexHits, err = e.chunks.SearchLexicalRaw(ctx, effectiveQuery, kRetrieval)
		if err != nil {
			lexHits = nil
		}
	}

	var (
		ids      []string
		scores   = map[string]float64{}
		scoreKnd ScoreKind
	)
	if len(lexHits) > 0 {
		fused := e.fusion.Fuse(lexHits, vecHits, opts.Weights)
		scoreKnd = ScoreKindRRF
		for _, f := range fused {
			ids = append(ids, f.ChunkID)
			scores[f.ChunkID] = f.RRFScore
		}
	} else {
		scoreKnd = ScoreKindCosine
		for _, v := range vecHits {
			ids = append(ids, v.ID)
			scores[v.ID] = float64(v.Score)
		}
	}

	candidates, err := e.hydrate(ctx, ids, opts.Filter)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Result{
			Text:     c.Text,
			Metadata: toMetadata(c),
			Score:    scores[c.ID],
			Kind:     scoreKnd,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	reranked := false
	if opts.Reranking && e.reranker != nil && e.reranker.Available(ctx) {
		if r := e.rerank(ctx, query, results, opts.K); r != nil {
			results = r
			reranked = true
		}
	}

	results = e.applyThreshold(results, opts.Threshold, reranked)

	if len(results) > opts.K {
		results = results[:opts.K]
	}
	return results, nil
}

// maybeExpand asks the configured QueryExpander for a richer phrase when
// expansion is requested, an expander is wired, and the query is short
// enough to plausibly benefit (spec §4.11 step 1). Any failure, a nil
// expander, or a too-long query all fall back to the literal query.
func (e *Engine) maybeExpand(ctx context.Context, query string, opts SearchOptions) string {
	if !opts.Expansion || e.expander == nil {
		return query
	}
	if len(strings.Fields(query)) > MaxExpansionQueryWords {
		return query
	}
	expanded, err := e.expander.Expand(ctx, query)
	if err != nil || strings.TrimSpace(expanded) == "" {
		return query
	}
	return expanded
}

// hydrate resolves ids (in rank order) to full chunks, applying filter
// post-fusion so RRF ranks the unfiltered candidate pool. Ids that no
// longer resolve (e.g. concurrently deleted) are skipped.
func (e *Engine) hydrate(ctx context.Context, ids []string, filter store.Filter) ([]*store.Chunk, error) {
	out := make([]*store.Chunk, 0, len(ids))
	for _, id := range ids {
		c, ok, err := e.chunks.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("search: hydrate chunk %s: %w", id, err)
		}
		if !ok {
			continue
		}
		if !filterMatches(filter, c) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func filterMatches(f store.Filter, c *store.Chunk) bool {
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	if f.Domain != "" && c.Domain != f.Domain {
		return false
	}
	return true
}

// rerank scores results with the cross-encoder and returns a reordered
// copy, or nil if reranking did not succeed (caller keeps the prior
// order; spec §4.11 step 4).
func (e *Engine) rerank(ctx context.Context, query string, results []Result, topK int) []Result {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	scored, err := e.reranker.Rerank(ctx, query, texts, topK)
	if err != nil {
		return nil
	}
	out := make([]Result, len(scored))
	for i, s := range scored {
		r := results[s.Index]
		r.Score = s.Score
		r.Kind = ScoreKindRerank
		out[i] = r
	}
	return out
}

// applyThreshold drops results below a similarity floor. An explicit
// caller-set Threshold always applies; the default floor otherwise only
// applies to pure cosine-similarity scores, and never after reranking
// unless the caller set one (spec §4.11 step 5).
func (e *Engine) applyThreshold(results []Result, threshold *float64, reranked bool) []Result {
	var floor float64
	var apply bool
	switch {
	case threshold != nil:
		floor, apply = *threshold, true
	case !reranked && len(results) > 0 && results[0].Kind == ScoreKindCosine:
		floor, apply = DefaultSimilarityThreshold, true
	}
	if !apply {
		return results
	}

	out := results[:0:0]
	for _, r := range results {
		if r.Score >= floor {
			out = append(out, r)
		}
	}
	return out
}

func toMetadata(c *store.Chunk) ResultMetadata {
	return ResultMetadata{
		ChunkID:    c.ID,
		SourceURL:  c.SourceURL,
		Kind:       c.Kind,
		Domain:     c.Domain,
		Topics:     c.Topics,
		Keywords:   c.Keywords,
		Summary:    c.Summary,
		Concepts:   c.Concepts,
		Difficulty: string(c.Difficulty),
		Languages:  c.Languages,
		Frameworks: c.Frameworks,
	}
}
