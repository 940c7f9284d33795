package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/Aman-CERP/webkb/internal/catalog"
	"github.com/Aman-CERP/webkb/internal/chunk"
	weberrors "github.com/Aman-CERP/webkb/internal/errors"
	"github.com/Aman-CERP/webkb/internal/fetch"
)

// Refresher re-checks fetched catalog entries whose refresh policy has
// come due and re-indexes the ones that changed (spec §4.9, §6).
type Refresher struct {
	deps Dependencies
	cfg  Config
}

// NewRefresher wires deps against cfg. A zero BatchSize is filled from
// DefaultConfig.
func NewRefresher(deps Dependencies, cfg Config) *Refresher {
	d := DefaultConfig()
	if cfg.BatchSize > 0 {
		d.BatchSize = cfg.BatchSize
	}
	return &Refresher{deps: deps, cfg: d}
}

// RefreshOnce processes up to BatchSize due entries sequentially: each
// entry is cheap-checked (when a Checker is configured for its kind),
// and only refetched in full when the cheap-check reports a change, the
// entry has no Checker (e.g. repo, which has no HEAD equivalent), or
// the cheap-check itself fails (spec §6: "refresh_once() -> {checked,
// unchanged, updated, failed}").
func (r *Refresher) RefreshOnce(ctx context.Context) (Result, error) {
	var result Result

	now := time.Now()
	entries, err := r.deps.Catalog.DueForRefresh(ctx, now, r.cfg.BatchSize)
	if err != nil {
		return result, fmt.Errorf("due_for_refresh: %w", err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++
		switch r.refreshEntry(ctx, e) {
		case "unchanged":
			result.Unchanged++
		case "updated":
			result.Updated++
		default:
			result.Failed++
		}
	}
	return result, nil
}

// refreshEntry cheap-checks then, if warranted, fully re-fetches e, and
// returns one of "unchanged", "updated", "failed".
func (r *Refresher) refreshEntry(ctx context.Context, e catalog.Entry) string {
	fetcher, ok := r.deps.Fetchers[e.Kind]
	if !ok {
		r.markFailed(ctx, e, weberrors.Config(fmt.Sprintf("no fetcher registered for kind %q", e.Kind), nil))
		return "failed"
	}

	if r.deps.Checker != nil && (e.Kind == catalog.KindWebPage || e.Kind == catalog.KindDocSitePage) {
		changed, err := r.cheapCheck(ctx, e)
		if err == nil && !changed {
			now := time.Now()
			if err := r.deps.Catalog.MarkFetched(ctx, e.URLHash, now, e.RefreshPolicy.NextFrom(now)); err != nil {
				slog.Warn("refresh: mark_fetched failed for unchanged entry", "url", e.URL, "error", err)
				return "failed"
			}
			return "unchanged"
		}
		if err != nil {
			slog.Warn("refresh: cheap-check failed, falling back to full refetch", "url", e.URL, "error", err)
		}
	}

	doc, err := fetcher.Fetch(ctx, e.URL)
	if err != nil {
		r.markFailed(ctx, e, err)
		return "failed"
	}

	chunks, err := r.deps.Chunker.ChunkDocument(ctx, chunk.Input{
		SourceURL:  e.URL,
		Kind:       string(e.Kind),
		Domain:     hostOf(e.URL),
		Title:      doc.Title,
		Text:       doc.Text,
		Validators: doc.Validators,
		FetchedAt:  time.Now(),
	})
	if err != nil {
		r.markFailed(ctx, e, weberrors.Wrap(weberrors.ErrCodeContentRejected, err))
		return "failed"
	}
	if len(chunks) == 0 {
		r.markFailed(ctx, e, weberrors.Permanent("document produced no chunks", nil))
		return "failed"
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := r.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		r.markFailed(ctx, e, weberrors.Wrap(weberrors.ErrCodeEmbedderTimeout, err))
		return "failed"
	}
	if len(vectors) != len(chunks) {
		r.markFailed(ctx, e, weberrors.Permanent("embedder returned a mismatched vector count", nil))
		return "failed"
	}
	for i, v := range vectors {
		chunks[i].Embedding = v
	}

	if r.deps.Enricher != nil {
		for _, c := range chunks {
			meta := r.deps.Enricher.Enrich(ctx, c.Text)
			c.Topics = meta.Topics
			c.Keywords = meta.Keywords
			c.Summary = meta.Summary
			c.Concepts = meta.Concepts
			c.Difficulty = meta.Difficulty
			c.Languages = meta.Languages
			c.Frameworks = meta.Frameworks
		}
	}

	if err := r.deps.Chunks.ReplaceBySourceURL(ctx, e.URL, chunks); err != nil {
		r.markFailed(ctx, e, weberrors.Wrap(weberrors.ErrCodeIndexCorrupt, err))
		return "failed"
	}

	now := time.Now()
	if err := r.deps.Catalog.MarkFetched(ctx, e.URLHash, now, e.RefreshPolicy.NextFrom(now)); err != nil {
		slog.Warn("refresh: mark_fetched failed after successful re-index", "url", e.URL, "error", err)
		return "failed"
	}
	return "updated"
}

// cheapCheck recovers e's prior Validators from its most recently
// indexed chunk (all chunks of a document share the same Validators)
// and asks the Checker whether the document may have changed.
func (r *Refresher) cheapCheck(ctx context.Context, e catalog.Entry) (bool, error) {
	prior, err := r.priorValidators(ctx, e.URL)
	if err != nil {
		return true, err
	}
	return r.deps.Checker.Check(ctx, e.URL, prior)
}

func (r *Refresher) priorValidators(ctx context.Context, sourceURL string) (fetch.Validators, error) {
	chunks, err := r.deps.Chunks.GetBySourceURL(ctx, sourceURL)
	if err != nil {
		return fetch.Validators{}, err
	}
	if len(chunks) == 0 {
		return fetch.Validators{}, nil
	}
	c := chunks[0]
	return fetch.Validators{
		HTTPLastModified: c.HTTPLastModified,
		HTTPETag:         c.HTTPETag,
		CommitID:         c.CommitID,
	}, nil
}

func (r *Refresher) markFailed(ctx context.Context, e catalog.Entry, err error) {
	maxRetries := 0
	if weberrors.IsRetryable(err) {
		maxRetries = 3
	}
	if mfErr := r.deps.Catalog.MarkFailed(ctx, e.URLHash, err.Error(), time.Now(), maxRetries); mfErr != nil {
		slog.Warn("refresh: mark_failed itself failed", "url", e.URL, "error", mfErr)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
