package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"

	weberrors "github.com/Aman-CERP/webkb/internal/errors"
)

// HTMLFetcherConfig tunes HtmlFetcher behavior.
type HTMLFetcherConfig struct {
	Timeout         time.Duration
	MaxBytes        int64
	UserAgent       string
	MaxRedirects    int
	EnableHeadless  bool // render with a headless browser when static fetch looks thin
	MinTextForNoJS  int  // below this many runes, consider rendering with a headless browser
}

// DefaultHTMLFetcherConfig returns hardened defaults.
func DefaultHTMLFetcherConfig() HTMLFetcherConfig {
	return HTMLFetcherConfig{
		Timeout:        20 * time.Second,
		MaxBytes:       8 * 1000 * 1000,
		UserAgent:      "webkb/1.0 (+https://github.com/Aman-CERP/webkb)",
		MaxRedirects:   10,
		EnableHeadless: false,
		MinTextForNoJS: 200,
	}
}

// HTMLFetcher retrieves a page, extracting main content and converting it
// to markdown (spec §4.4). It falls back to headless rendering via
// renderer when the static fetch yields implausibly little text and
// EnableHeadless is set.
type HTMLFetcher struct {
	client   *http.Client
	cfg      HTMLFetcherConfig
	limiter  *HostLimiter
	renderer Renderer
}

// Renderer renders a URL's fully loaded DOM to HTML, for JS-dependent
// pages. See headless.go for the chromedp-backed implementation.
type Renderer interface {
	Render(ctx context.Context, url string) (html string, err error)
}

// NewHTMLFetcher builds an HtmlFetcher sharing limiter with other fetchers
// on the same host set.
func NewHTMLFetcher(cfg HTMLFetcherConfig, limiter *HostLimiter, renderer Renderer) *HTMLFetcher {
	dialer := &net.Dialer{Timeout: 7 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   7 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	checkRedirect := func(req *http.Request, via []*http.Request) error {
		if len(via) > cfg.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
		}
		return nil
	}
	client := &http.Client{Transport: transport, CheckRedirect: checkRedirect, Timeout: cfg.Timeout}

	return &HTMLFetcher{client: client, cfg: cfg, limiter: limiter, renderer: renderer}
}

// Fetch retrieves url and returns a FetchedDocument with markdown text.
func (f *HTMLFetcher) Fetch(ctx context.Context, rawURL string) (*FetchedDocument, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}
	}

	doc, err := f.fetchOnce(ctx, rawURL, "")
	if err != nil {
		if f.limiter != nil && weberrors.IsRetryable(err) {
			f.limiter.RecordFailure(rawURL)
		}
		return nil, err
	}

	if f.cfg.EnableHeadless && f.renderer != nil && len([]rune(doc.Text)) < f.cfg.MinTextForNoJS {
		if rendered, rerr := f.renderer.Render(ctx, rawURL); rerr == nil && strings.TrimSpace(rendered) != "" {
			if withJS, jerr := f.fetchOnce(ctx, rawURL, rendered); jerr == nil && len([]rune(withJS.Text)) > len([]rune(doc.Text)) {
				doc = withJS
			}
		}
	}

	if f.limiter != nil {
		f.limiter.RecordSuccess(rawURL)
	}
	return doc, nil
}

// fetchOnce performs the actual HTTP GET and extraction, unless
// preRenderedHTML is non-empty, in which case it skips the network call
// and extracts from the supplied DOM instead.
func (f *HTMLFetcher) fetchOnce(ctx context.Context, rawURL string, preRenderedHTML string) (*FetchedDocument, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, weberrors.Permanent("invalid url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, weberrors.Permanent("unsupported scheme: "+u.Scheme, nil)
	}

	var (
		finalURL   = rawURL
		statusCode = 200
		ct, cs     string
		utf8Body   []byte
		lastMod    string
		etag       string
	)

	if preRenderedHTML != "" {
		utf8Body = []byte(preRenderedHTML)
		ct = "text/html"
	} else {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, weberrors.Permanent("failed to build request", err)
		}
		req.Header.Set("User-Agent", f.cfg.UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, weberrors.Transient("html fetch failed", err)
		}
		defer resp.Body.Close()

		finalURL = resp.Request.URL.String()
		statusCode = resp.StatusCode
		lastMod = resp.Header.Get("Last-Modified")
		etag = resp.Header.Get("ETag")
		ct, cs = parseContentType(resp.Header.Get("Content-Type"))

		if statusCode == 429 || statusCode >= 500 {
			return nil, weberrors.Transient(fmt.Sprintf("html fetch returned %d", statusCode), nil)
		}
		if statusCode >= 400 {
			return nil, weberrors.Permanent(fmt.Sprintf("html fetch returned %d", statusCode), nil)
		}

		limited := io.LimitReader(resp.Body, f.cfg.MaxBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			return nil, weberrors.Transient("failed to read response body", err)
		}
		if int64(len(body)) > f.cfg.MaxBytes {
			return nil, weberrors.Permanent(fmt.Sprintf("response exceeds max bytes (%d)", f.cfg.MaxBytes), nil)
		}

		utf8Body, err = toUTF8(body, cs)
		if err != nil {
			return nil, weberrors.SoftParse("charset decode failed", err)
		}
	}

	html := string(utf8Body)
	articleHTML, title := extractArticle(html, finalURL)
	if articleHTML == "" {
		articleHTML = html
	}

	base := baseOrigin(finalURL)
	md, err := htmltomarkdown.ConvertString(articleHTML, converter.WithDomain(base))
	if err != nil {
		return nil, weberrors.SoftParse("html to markdown conversion failed", err)
	}
	if title != "" && !hasLeadingH1(md) {
		md = "# " + title + "\n\n" + md
	}

	return &FetchedDocument{
		Text:      strings.TrimSpace(md),
		Title:     title,
		Kind:      "web_page",
		SourceURL: finalURL,
		Validators: Validators{
			HTTPLastModified: lastMod,
			HTTPETag:         etag,
			StatusCode:       statusCode,
			ContentType:      ct,
		},
	}, nil
}

func extractArticle(html, finalURL string) (articleHTML, title string) {
	base, _ := url.Parse(finalURL)
	art, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil || strings.TrimSpace(art.Content) == "" {
		return "", ""
	}
	return art.Content, strings.TrimSpace(art.Title)
}

func parseContentType(h string) (ctype, charsetLabel string) {
	if h == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(h)
	if err != nil {
		return h, ""
	}
	return strings.ToLower(mt), strings.ToLower(params["charset"])
}

func toUTF8(b []byte, charsetLabel string) ([]byte, error) {
	if charsetLabel == "" || strings.EqualFold(charsetLabel, "utf-8") || strings.EqualFold(charsetLabel, "utf8") {
		return b, nil
	}
	r, err := charset.NewReaderLabel(charsetLabel, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func baseOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func hasLeadingH1(md string) bool {
	md = strings.TrimLeft(md, "\n")
	return strings.HasPrefix(md, "# ")
}
