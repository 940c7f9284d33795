package queue

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/webkb/internal/catalog"
	"github.com/Aman-CERP/webkb/internal/chunk"
	weberrors "github.com/Aman-CERP/webkb/internal/errors"
	"github.com/Aman-CERP/webkb/internal/store"
)

// Processor drains the URL Catalog's pending entries and carries each
// through fetch, chunk, embed, and enrich (spec §4.9).
type Processor struct {
	deps Dependencies
	cfg  Config
}

// NewProcessor wires deps against cfg. Zero-value Config fields are
// filled from DefaultConfig.
func NewProcessor(deps Dependencies, cfg Config) *Processor {
	d := DefaultConfig()
	if cfg.BatchSize > 0 {
		d.BatchSize = cfg.BatchSize
	}
	if cfg.ConcurrentFetches > 0 {
		d.ConcurrentFetches = cfg.ConcurrentFetches
	}
	if cfg.MaxRetries > 0 {
		d.MaxRetries = cfg.MaxRetries
	}
	if cfg.EnricherConcurrency > 0 {
		d.EnricherConcurrency = cfg.EnricherConcurrency
	}
	d.CrawlEligible = cfg.CrawlEligible
	if d.CrawlEligible == nil {
		d.CrawlEligible = func(catalog.Entry) bool { return false }
	}
	return &Processor{deps: deps, cfg: d}
}

// ProcessBatches repeatedly claims up to BatchSize pending entries and
// processes them, stopping when the Catalog runs dry, maxBatches is
// reached (0 means unbounded), or ctx is cancelled (spec §6:
// "process_queue(max_batches) -> {succeeded, failed, skipped}").
func (p *Processor) ProcessBatches(ctx context.Context, maxBatches int) (Summary, error) {
	var total Summary
	for batches := 0; maxBatches <= 0 || batches < maxBatches; batches++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		entries, err := p.deps.Catalog.ClaimBatch(ctx, p.cfg.BatchSize)
		if err != nil {
			return total, fmt.Errorf("claim_batch: %w", err)
		}
		if len(entries) == 0 {
			return total, nil
		}

		s := p.processBatch(ctx, entries)
		total.Succeeded += s.Succeeded
		total.Failed += s.Failed
		total.Skipped += s.Skipped
	}
	return total, nil
}

func (p *Processor) processBatch(ctx context.Context, entries []catalog.Entry) Summary {
	var sum Summary
	results := make([]string, len(entries)) // "succeeded" | "failed" | "skipped"

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.ConcurrentFetches)

	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			results[i] = p.processEntry(gctx, e)
			return nil
		})
	}
	_ = g.Wait() // processEntry never returns an error; each outcome is recorded in results

	for _, r := range results {
		switch r {
		case "succeeded":
			sum.Succeeded++
		case "skipped":
			sum.Skipped++
		default:
			sum.Failed++
		}
	}
	return sum
}

// processEntry dispatches a single claimed entry end to end and returns
// one of "succeeded", "failed", "skipped". It never returns an error
// itself: every failure is recorded against the Catalog via MarkFailed
// so one bad entry cannot abort the batch.
func (p *Processor) processEntry(ctx context.Context, e catalog.Entry) string {
	if e.Kind == catalog.KindVideoChannel {
		return p.processChannel(ctx, e)
	}

	if e.Kind == catalog.KindWebPage && p.cfg.CrawlEligible(e) && p.deps.Crawler != nil {
		p.runCrawl(ctx, e)
	}

	return p.fetchAndIndex(ctx, e)
}

// processChannel expands a video_channel entry into its member video
// URLs and inserts them as new catalog entries; the channel entry
// itself is never fetched or chunked (spec §4.4/§4.9).
func (p *Processor) processChannel(ctx context.Context, e catalog.Entry) string {
	if p.deps.Expander == nil {
		p.markFailed(ctx, e, weberrors.Config("no channel expander configured", nil))
		return "failed"
	}

	urls, err := p.deps.Expander.Expand(ctx, e.URL, 0)
	if err != nil {
		p.markFailed(ctx, e, err)
		return "failed"
	}

	now := time.Now()
	var newEntries []catalog.Entry
	for _, u := range urls {
		norm, err := catalog.Normalize(u)
		if err != nil {
			continue
		}
		newEntries = append(newEntries, catalog.Entry{
			URLHash:        catalog.Hash(norm),
			URL:            norm,
			Kind:           catalog.KindVideo,
			Status:         catalog.StatusPending,
			Priority:       catalog.PriorityCrawled,
			DiscoveredFrom: "channel:" + e.URL,
			AddedAt:        now,
			RefreshPolicy:  catalog.DefaultRefreshPolicy(catalog.KindVideo),
		})
	}
	if len(newEntries) > 0 {
		if _, err := p.deps.Catalog.InsertIfAbsent(ctx, newEntries); err != nil {
			slog.Warn("channel expansion: failed to insert discovered videos", "channel", e.URL, "error", err)
		}
	}

	if err := p.deps.Catalog.MarkFetched(ctx, e.URLHash, now, e.RefreshPolicy.NextFrom(now)); err != nil {
		slog.Warn("channel expansion: mark_fetched failed", "channel", e.URL, "error", err)
		return "failed"
	}
	return "succeeded"
}

// runCrawl drives the Crawler over a crawl-eligible web_page entry and
// inserts its discovered links as new pending entries. The entry's own
// start page is always subsequently fetched normally regardless of the
// crawl's outcome (spec §4.9 step 2).
func (p *Processor) runCrawl(ctx context.Context, e catalog.Entry) {
	result, err := p.deps.Crawler.Crawl(ctx, e.URL)
	if err != nil {
		slog.Warn("crawl failed, continuing with start page only", "url", e.URL, "error", err)
		return
	}

	now := time.Now()
	var discovered []catalog.Entry
	for _, u := range result.Discovered {
		norm, err := catalog.Normalize(u)
		if err != nil {
			continue
		}
		discovered = append(discovered, catalog.Entry{
			URLHash:        catalog.Hash(norm),
			URL:            norm,
			Kind:           catalog.DetectKind(norm, true),
			Status:         catalog.StatusPending,
			Priority:       catalog.PriorityCrawled,
			DiscoveredFrom: "crawl:" + e.URL,
			AddedAt:        now,
			RefreshPolicy:  catalog.DefaultRefreshPolicy(catalog.DetectKind(norm, true)),
		})
	}
	if len(discovered) > 0 {
		if _, err := p.deps.Catalog.InsertIfAbsent(ctx, discovered); err != nil {
			slog.Warn("crawl: failed to insert discovered urls", "url", e.URL, "error", err)
		}
	}
}

// fetchAndIndex fetches, chunks, embeds, and enriches e, then writes the
// result into the Vector/Lexical indexes, deleting any prior chunks for
// this URL first (spec §4.9 steps 3-5).
func (p *Processor) fetchAndIndex(ctx context.Context, e catalog.Entry) string {
	fetcher, ok := p.deps.Fetchers[e.Kind]
	if !ok {
		p.markFailed(ctx, e, weberrors.Config(fmt.Sprintf("no fetcher registered for kind %q", e.Kind), nil))
		return "failed"
	}

	if p.deps.HostLimiter != nil {
		if err := p.deps.HostLimiter.Wait(ctx, e.URL); err != nil {
			return "failed"
		}
	}

	doc, err := fetcher.Fetch(ctx, e.URL)
	if err != nil {
		if p.deps.HostLimiter != nil && weberrors.IsRetryable(err) {
			p.deps.HostLimiter.RecordFailure(e.URL)
		}
		p.markFailed(ctx, e, err)
		return "failed"
	}
	if p.deps.HostLimiter != nil {
		p.deps.HostLimiter.RecordSuccess(e.URL)
	}

	chunks, err := p.deps.Chunker.ChunkDocument(ctx, chunk.Input{
		SourceURL:  e.URL,
		Kind:       string(e.Kind),
		Domain:     hostOf(e.URL),
		Title:      doc.Title,
		Text:       doc.Text,
		Validators: doc.Validators,
		FetchedAt:  time.Now(),
	})
	if err != nil {
		p.markFailed(ctx, e, weberrors.Wrap(weberrors.ErrCodeContentRejected, err))
		return "failed"
	}
	if len(chunks) == 0 {
		p.markFailed(ctx, e, weberrors.Permanent("document produced no chunks", nil))
		return "failed"
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		p.markFailed(ctx, e, weberrors.Wrap(weberrors.ErrCodeEmbedderTimeout, err))
		return "failed"
	}
	if len(vectors) != len(chunks) {
		p.markFailed(ctx, e, weberrors.Permanent("embedder returned a mismatched vector count", nil))
		return "failed"
	}
	for i, v := range vectors {
		chunks[i].Embedding = v
	}

	if p.deps.Enricher != nil {
		p.enrichAll(ctx, chunks)
	}

	if err := p.deps.Chunks.ReplaceBySourceURL(ctx, e.URL, chunks); err != nil {
		p.markFailed(ctx, e, weberrors.Wrap(weberrors.ErrCodeIndexCorrupt, err))
		return "failed"
	}

	now := time.Now()
	if err := p.deps.Catalog.MarkFetched(ctx, e.URLHash, now, e.RefreshPolicy.NextFrom(now)); err != nil {
		slog.Warn("mark_fetched failed after successful write", "url", e.URL, "error", err)
		return "failed"
	}
	return "succeeded"
}

// enrichAll fans Enrich calls out across chunks bounded by
// EnricherConcurrency (spec §4.7/§4.9; Enrich has no error return, so
// enrichment can never fail the document, only degrade a chunk's
// metadata to its zero value).
func (p *Processor) enrichAll(ctx context.Context, chunks []*store.Chunk) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EnricherConcurrency)
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			meta := p.deps.Enricher.Enrich(gctx, c.Text)
			c.Topics = meta.Topics
			c.Keywords = meta.Keywords
			c.Summary = meta.Summary
			c.Concepts = meta.Concepts
			c.Difficulty = meta.Difficulty
			c.Languages = meta.Languages
			c.Frameworks = meta.Frameworks
			return nil
		})
	}
	_ = g.Wait()
}

// markFailed classifies err and records it against the catalog entry.
// Only errors internal/errors classifies as retryable (Transient) get
// the configured retry budget; everything else (Permanent, Config,
// Corruption, or an unclassified error from a dependency that hasn't
// adopted the WebKBError taxonomy) is recorded with MaxRetries=0 so the
// entry fails immediately rather than spending retries on a request
// that can never succeed (spec §4.9 step 6: "Retriable failures
// re-enter pending... after max_retries the entry sticks at failed").
func (p *Processor) markFailed(ctx context.Context, e catalog.Entry, err error) {
	maxRetries := 0
	if weberrors.IsRetryable(err) {
		maxRetries = p.cfg.MaxRetries
	}
	if mfErr := p.deps.Catalog.MarkFailed(ctx, e.URLHash, err.Error(), time.Now(), maxRetries); mfErr != nil {
		slog.Warn("mark_failed itself failed", "url", e.URL, "error", mfErr)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
