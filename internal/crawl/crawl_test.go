package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageSet maps path -> HTML body for a tiny in-process site.
type pageSet map[string]string

func newTestSite(t *testing.T, pages pageSet) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range pages {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, body)
		})
	}
	return httptest.NewServer(mux)
}

func TestCrawler_Crawl_DiscoversSameOriginLinksBFS(t *testing.T) {
	// Given a three-page same-origin site linked from the start page
	srv := newTestSite(t, pageSet{
		"/":      `<html><body><a href="/guide">Guide</a><a href="/about">About</a></body></html>`,
		"/guide": `<html><body><a href="/guide/deep">Deep</a></body></html>`,
		"/about": `<html><body>no links here</body></html>`,
		"/guide/deep": `<html><body>leaf page</body></html>`,
	})
	defer srv.Close()

	c := New(DefaultConfig(), nil)

	// When crawling from the root
	result, err := c.Crawl(context.Background(), srv.URL+"/")

	// Then all four same-origin pages are discovered
	require.NoError(t, err)
	assert.Len(t, result.Discovered, 4)
	assert.Contains(t, result.Discovered, srv.URL+"/guide")
	assert.Contains(t, result.Discovered, srv.URL+"/about")
	assert.Contains(t, result.Discovered, srv.URL+"/guide/deep")
}

func TestCrawler_Crawl_ExcludesLoginAndSearchPaths(t *testing.T) {
	// Given a start page linking to excluded paths
	srv := newTestSite(t, pageSet{
		"/":       `<html><body><a href="/login">Login</a><a href="/search?q=x">Search</a><a href="/docs">Docs</a></body></html>`,
		"/docs":   `<html><body>real content</body></html>`,
		"/login":  `<html><body>should not be followed</body></html>`,
		"/search": `<html><body>should not be followed</body></html>`,
	})
	defer srv.Close()

	c := New(DefaultConfig(), nil)

	// When crawling
	result, err := c.Crawl(context.Background(), srv.URL+"/")

	// Then only the non-excluded page is discovered
	require.NoError(t, err)
	assert.Contains(t, result.Discovered, srv.URL+"/docs")
	assert.NotContains(t, result.Discovered, srv.URL+"/login")
	assert.NotContains(t, result.Discovered, srv.URL+"/search?q=x")
}

func TestCrawler_Crawl_ExcludesImageExtensions(t *testing.T) {
	srv := newTestSite(t, pageSet{
		"/":         `<html><body><a href="/banner.png">Banner</a><a href="/page">Page</a></body></html>`,
		"/page":     `<html><body>content</body></html>`,
		"/banner.png": `not actually reached`,
	})
	defer srv.Close()

	c := New(DefaultConfig(), nil)

	result, err := c.Crawl(context.Background(), srv.URL+"/")

	require.NoError(t, err)
	assert.Contains(t, result.Discovered, srv.URL+"/page")
	assert.NotContains(t, result.Discovered, srv.URL+"/banner.png")
}

func TestCrawler_Crawl_StopsAtMaxPages(t *testing.T) {
	// Given a chain of pages each linking to the next, exceeding max_pages
	pages := pageSet{}
	for i := 0; i < 10; i++ {
		next := fmt.Sprintf("/p%d", i+1)
		pages[fmt.Sprintf("/p%d", i)] = fmt.Sprintf(`<html><body><a href="%s">next</a></body></html>`, next)
	}
	pages["/p10"] = `<html><body>leaf</body></html>`
	srv := newTestSite(t, pages)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxPages = 3
	c := New(cfg, nil)

	result, err := c.Crawl(context.Background(), srv.URL+"/p0")

	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Discovered), 3)
	assert.Equal(t, "max_pages", result.TruncatedBy)
}

func TestCrawler_Crawl_DoesNotFollowOffOriginLinks(t *testing.T) {
	srv := newTestSite(t, pageSet{
		"/": `<html><body><a href="https://other-domain.example.com/page">External</a></body></html>`,
	})
	defer srv.Close()

	c := New(DefaultConfig(), nil)

	result, err := c.Crawl(context.Background(), srv.URL+"/")

	require.NoError(t, err)
	assert.Len(t, result.Discovered, 1)
}

func TestCrawler_Crawl_RespectsSoftTimeBound(t *testing.T) {
	srv := newTestSite(t, pageSet{
		"/": `<html><body><a href="/a">a</a></body></html>`,
		"/a": `<html><body><a href="/b">b</a></body></html>`,
		"/b": `<html><body>leaf</body></html>`,
	})
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.SoftTimeBound = 1 * time.Nanosecond
	c := New(cfg, nil)

	result, err := c.Crawl(context.Background(), srv.URL+"/")

	require.NoError(t, err)
	assert.Equal(t, "time_bound", result.TruncatedBy)
}
