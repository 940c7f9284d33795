// Package crawl implements the BFS same-origin documentation-site
// crawler (spec §4.5). It discovers same-origin pages reachable from a
// start URL and hands them to the URL Catalog; it does not fetch page
// bodies beyond what is needed to extract links.
package crawl

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/Aman-CERP/webkb/internal/catalog"
	weberrors "github.com/Aman-CERP/webkb/internal/errors"
)

const (
	// DefaultMaxPages bounds a single crawl (spec §4.5).
	DefaultMaxPages = 1000

	// DefaultSoftTimeBound is the crawl's wall-clock ceiling.
	DefaultSoftTimeBound = 10 * time.Minute
)

// excludedPathPrefixes are never enqueued regardless of origin.
var excludedPathPrefixes = []string{
	"/login", "/signup", "/search", "/cart", "/checkout", "/account", "/admin", "/api/",
}

// excludedExtensions mark opaque, non-HTML resources.
var excludedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true, ".ico": true,
	".mp4": true, ".webm": true, ".mov": true, ".avi": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true, ".7z": true,
	".exe": true, ".dmg": true, ".bin": true, ".apk": true,
	".pdf": true,
}

// Crawler performs a bounded BFS from a start URL, same-origin only.
type Crawler struct {
	client   *http.Client
	limiter  HostWaiter
	maxPages int
	timeBound time.Duration
}

// HostWaiter abstracts the per-host pacing dependency (internal/fetch's
// HostLimiter satisfies this without an import cycle between the two
// packages).
type HostWaiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config tunes a Crawler.
type Config struct {
	MaxPages      int
	SoftTimeBound time.Duration
	Timeout       time.Duration
}

// DefaultConfig returns spec §4.5's defaults.
func DefaultConfig() Config {
	return Config{
		MaxPages:      DefaultMaxPages,
		SoftTimeBound: DefaultSoftTimeBound,
		Timeout:       10 * time.Second,
	}
}

// New builds a Crawler. limiter may be nil to crawl unthrottled (tests).
func New(cfg Config, limiter HostWaiter) *Crawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.SoftTimeBound <= 0 {
		cfg.SoftTimeBound = DefaultSoftTimeBound
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Crawler{
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   limiter,
		maxPages:  cfg.MaxPages,
		timeBound: cfg.SoftTimeBound,
	}
}

// Result is the set of URLs discovered by a crawl, in BFS visit order.
type Result struct {
	StartURL     string
	Discovered   []string
	PagesVisited int
	TruncatedBy  string // "max_pages", "queue_exhausted", or "time_bound"
}

// Crawl performs the BFS from startURL. It returns the discovered URL
// set (including startURL); callers insert these into the Catalog via
// insert_if_absent with kind=web_page, discovered_from="crawl:<startURL>",
// priority=50 (spec §4.5) — the Crawler itself has no Catalog dependency
// so it stays testable without a store.
func (c *Crawler) Crawl(ctx context.Context, startURL string) (*Result, error) {
	normalizedStart, err := catalog.Normalize(startURL)
	if err != nil {
		return nil, weberrors.Permanent("invalid start url", err)
	}
	origin, err := hostOf(normalizedStart)
	if err != nil {
		return nil, weberrors.Permanent("invalid start url", err)
	}

	deadline := time.Now().Add(c.timeBound)
	visited := map[string]bool{normalizedStart: true}
	queue := []string{normalizedStart}
	discovered := []string{normalizedStart}
	truncated := "queue_exhausted"

	for len(queue) > 0 {
		if len(discovered) >= c.maxPages {
			truncated = "max_pages"
			break
		}
		if time.Now().After(deadline) {
			truncated = "time_bound"
			break
		}

		next := queue[0]
		queue = queue[1:]

		links, err := c.fetchLinks(ctx, next)
		if err != nil {
			slog.Debug("crawl: failed to fetch page for link extraction", "url", next, "error", err)
			continue
		}

		for _, link := range links {
			normalized, err := catalog.Normalize(link)
			if err != nil {
				continue
			}
			if visited[normalized] {
				continue
			}
			if !isSameOrigin(normalized, origin) {
				continue
			}
			if !isCrawlable(normalized) {
				continue
			}

			visited[normalized] = true
			discovered = append(discovered, normalized)
			queue = append(queue, normalized)

			if len(discovered) >= c.maxPages {
				break
			}
		}
	}

	return &Result{
		StartURL:     normalizedStart,
		Discovered:   discovered,
		PagesVisited: len(visited),
		TruncatedBy:  truncated,
	}, nil
}

func (c *Crawler) fetchLinks(ctx context.Context, pageURL string) ([]string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, pageURL); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, weberrors.Permanent("failed to build request", err)
	}
	req.Header.Set("User-Agent", "webkb-crawler/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, weberrors.Transient("crawl fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		if weberrors.HTTPStatusKind(resp.StatusCode) == weberrors.KindTransient {
			return nil, weberrors.Transient("crawl fetch returned "+resp.Status, nil)
		}
		return nil, weberrors.Permanent("crawl fetch returned "+resp.Status, nil)
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "text/html") {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1000*1000))
	if err != nil {
		return nil, weberrors.Transient("failed to read crawl response", err)
	}

	return extractLinks(pageURL, body)
}

// extractLinks parses body's <a href> attributes, resolving them against
// base.
func extractLinks(base string, body []byte) ([]string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, weberrors.SoftParse("failed to parse crawl page html", err)
	}

	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
					continue
				}
				resolved, err := baseURL.Parse(href)
				if err != nil {
					continue
				}
				if resolved.Scheme != "http" && resolved.Scheme != "https" {
					continue
				}
				resolved.Fragment = ""
				links = append(links, resolved.String())
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return links, nil
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Host), nil
}

func isSameOrigin(rawURL, origin string) bool {
	h, err := hostOf(rawURL)
	return err == nil && h == origin
}

func isCrawlable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)

	for _, prefix := range excludedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}

	if idx := strings.LastIndex(path, "."); idx >= 0 {
		if excludedExtensions[path[idx:]] {
			return false
		}
	}

	return true
}
