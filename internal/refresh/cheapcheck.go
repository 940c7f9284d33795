package refresh

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	weberrors "github.com/Aman-CERP/webkb/internal/errors"
	"github.com/Aman-CERP/webkb/internal/fetch"
)

// DefaultHeadTimeout is the per-request ceiling for a cheap-check HEAD
// request (spec §6: "Refresher HEAD requests follow redirects, 10s
// deadline").
const DefaultHeadTimeout = 10 * time.Second

// CheapChecker reports whether url's content may have changed since
// prior was recorded, without doing a full refetch. A checker that
// cannot determine this for a given URL should report changed=true so
// the Refresher falls back to a full refetch rather than silently
// skipping a stale document.
type CheapChecker interface {
	Check(ctx context.Context, rawURL string, prior fetch.Validators) (changed bool, err error)
}

// HTTPHeadChecker cheap-checks web_page/doc_site_page entries with a
// HEAD request, comparing ETag and Last-Modified against prior
// (spec §4.9/§6). Built the same way internal/fetch.HTMLFetcher builds
// its client: a dialer and transport with hardened timeouts and a
// redirect-following client with its own ceiling.
type HTTPHeadChecker struct {
	client    *http.Client
	userAgent string
}

// NewHTTPHeadChecker builds a checker sharing none of the fetch
// package's per-host rate limiting; the Refresher's own batch size
// bounds concurrency for cheap-checks.
func NewHTTPHeadChecker(userAgent string) *HTTPHeadChecker {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   5 * time.Second,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: DefaultHeadTimeout,
	}
	client := &http.Client{Transport: transport, Timeout: DefaultHeadTimeout}
	return &HTTPHeadChecker{client: client, userAgent: userAgent}
}

// Check issues a HEAD request and reports unchanged when the ETag or the
// Last-Modified header matches prior, and changed otherwise; a differing
// status is also reported as changed when prior records one. If the server
// returns neither validator header, Check reports changed=true: with
// nothing to compare, the Refresher must fall back to a full refetch.
func (c *HTTPHeadChecker) Check(ctx context.Context, rawURL string, prior fetch.Validators) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true, weberrors.Permanent("invalid url", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return true, weberrors.Permanent("failed to build head request", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return true, weberrors.Transient("head request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == 429 {
		return true, weberrors.Transient("head request returned "+resp.Status, nil)
	}
	if resp.StatusCode >= 400 {
		return true, weberrors.Permanent("head request returned "+resp.Status, nil)
	}

	if prior.StatusCode != 0 && resp.StatusCode != prior.StatusCode {
		return true, nil
	}
	etag := resp.Header.Get("ETag")
	lastMod := resp.Header.Get("Last-Modified")
	if etag == "" && lastMod == "" {
		return true, nil
	}
	if etag != "" && etag == prior.HTTPETag {
		return false, nil
	}
	if lastMod != "" && lastMod == prior.HTTPLastModified {
		return false, nil
	}
	return true, nil
}
