package discovery

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/Aman-CERP/webkb/internal/catalog"
)

// Config configures the Orchestrator's behavior (spec §4.8).
type Config struct {
	// MaxResultsPerQuery bounds each individual search call.
	MaxResultsPerQuery int
	// EnableCompetitorQueries runs the optional second pass naming
	// alternative technologies and issuing a query per alternative.
	EnableCompetitorQueries bool
	// HostQualityOverrides lets an operator tune or extend the default
	// per-host quality table.
	HostQualityOverrides map[string]float64
}

// DefaultConfig returns sane defaults.
func DefaultConfig() Config {
	return Config{MaxResultsPerQuery: 8}
}

// Orchestrator implements spec §4.8: translate a free-form input into
// a set of candidate URLs.
type Orchestrator struct {
	synthesizer QuerySynthesizer
	provider    SearchProvider
	cfg         Config
}

// NewOrchestrator wires a QuerySynthesizer and SearchProvider together.
func NewOrchestrator(synthesizer QuerySynthesizer, provider SearchProvider, cfg Config) *Orchestrator {
	if cfg.MaxResultsPerQuery <= 0 {
		cfg.MaxResultsPerQuery = DefaultConfig().MaxResultsPerQuery
	}
	return &Orchestrator{synthesizer: synthesizer, provider: provider, cfg: cfg}
}

// Discover runs the full spec §4.8 flow for one input string.
func (o *Orchestrator) Discover(ctx context.Context, input string) (*Result, error) {
	if urls := ExtractURLs(input); len(urls) > 0 {
		return o.fromLiteralURLs(urls), nil
	}
	return o.fromPrompt(ctx, input)
}

// fromLiteralURLs handles step 1: syntactic URLs found verbatim.
func (o *Orchestrator) fromLiteralURLs(urls []string) *Result {
	candidates := make([]Candidate, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		normalized, err := catalog.Normalize(raw)
		if err != nil {
			slog.Warn("discovery: skipping unnormalizable literal url", "url", raw, "error", err)
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		candidates = append(candidates, Candidate{
			URL:      normalized,
			Kind:     catalog.DetectKind(normalized, false),
			Priority: catalog.PriorityUserGiven,
		})
	}
	return &Result{Candidates: candidates, Mode: ModeURLs}
}

// fromPrompt handles steps 2-3: LLM query synthesis, provider search,
// aggregation, and the optional competitor pass.
func (o *Orchestrator) fromPrompt(ctx context.Context, prompt string) (*Result, error) {
	queries, err := o.synthesizer.SynthesizeQueries(ctx, prompt)
	if err != nil || len(queries) == 0 {
		if err != nil {
			slog.Warn("discovery: query synthesis unavailable, falling back to literal prompt", "error", err)
		}
		return o.fromLiteralQuery(ctx, prompt, ModeFallback)
	}

	if o.cfg.EnableCompetitorQueries {
		if alts, err := o.synthesizer.SynthesizeAlternatives(ctx, prompt); err != nil {
			slog.Warn("discovery: competitor query synthesis failed, continuing without it", "error", err)
		} else {
			queries = append(queries, alts...)
		}
	}

	hits := o.searchAll(ctx, queries)
	return &Result{Candidates: o.aggregate(hits), Mode: ModePrompt}, nil
}

// fromLiteralQuery is the failure-path fallback: treat the whole
// prompt as a single literal search query (spec §4.8: "LLM unreachable
// ⇒ fall back to treating the prompt as a single literal query").
func (o *Orchestrator) fromLiteralQuery(ctx context.Context, prompt string, mode Mode) (*Result, error) {
	hits := o.searchAll(ctx, []string{prompt})
	return &Result{Candidates: o.aggregate(hits), Mode: mode}, nil
}

// searchAll queries the provider for each query string, tolerating
// individual failures so a single over-quota or unreachable call
// doesn't abort the whole discovery (spec §4.8 failure semantics).
func (o *Orchestrator) searchAll(ctx context.Context, queries []string) []SearchResult {
	var all []SearchResult
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		results, err := o.provider.Search(ctx, q, o.cfg.MaxResultsPerQuery)
		if err != nil {
			slog.Warn("discovery: search provider call failed, continuing with other queries", "query", q, "error", err)
			continue
		}
		all = append(all, results...)
	}
	return all
}

// scoredHit pairs a normalized URL with its best observed score across
// every query that surfaced it.
type scoredHit struct {
	url   string
	kind  catalog.Kind
	score float64
}

// aggregate deduplicates search hits by normalized URL and scores each
// by provider relevance times host quality (spec §4.8, §9 Open
// Questions: "implemented as a simple weighted product... recorded
// here rather than guessed silently" — see DESIGN.md).
func (o *Orchestrator) aggregate(hits []SearchResult) []Candidate {
	best := make(map[string]scoredHit)
	for _, h := range hits {
		normalized, err := catalog.Normalize(h.URL)
		if err != nil {
			continue
		}
		host := hostOf(normalized)
		score := h.Relevance * HostQuality(host, o.cfg.HostQualityOverrides)
		if existing, ok := best[normalized]; !ok || score > existing.score {
			best[normalized] = scoredHit{url: normalized, kind: catalog.DetectKind(normalized, false), score: score}
		}
	}

	ranked := make([]scoredHit, 0, len(best))
	for _, v := range best {
		ranked = append(ranked, v)
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	candidates := make([]Candidate, 0, len(ranked))
	for _, r := range ranked {
		candidates = append(candidates, Candidate{
			URL:      r.url,
			Kind:     r.kind,
			Priority: catalog.PrioritySearchDerived,
		})
	}
	return candidates
}

func hostOf(normalizedURL string) string {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return ""
	}
	return u.Host
}
