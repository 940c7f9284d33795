package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	weberrors "github.com/Aman-CERP/webkb/internal/errors"
)

// searchProviderResponse is the provider-defined JSON shape spec §6
// describes: "a list of results each carrying URL, title, and snippet".
type searchProviderResponse struct {
	Results []struct {
		URL       string  `json:"url"`
		Title     string  `json:"title"`
		Snippet   string  `json:"snippet"`
		Relevance float64 `json:"relevance"`
	} `json:"results"`
}

// HTTPSearchProviderConfig configures the web-search HTTP adapter.
type HTTPSearchProviderConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// DefaultHTTPSearchProviderConfig returns sane client defaults.
func DefaultHTTPSearchProviderConfig() HTTPSearchProviderConfig {
	return HTTPSearchProviderConfig{Timeout: 15 * time.Second}
}

// HTTPSearchProvider implements SearchProvider against a search API
// endpoint taking a GET request with an API key header (spec §6). Any
// provider matching this response shape is swappable by pointing
// Endpoint/APIKey at it — no code change required.
type HTTPSearchProvider struct {
	client *http.Client
	cfg    HTTPSearchProviderConfig
}

// NewHTTPSearchProvider builds a provider against cfg.Endpoint.
func NewHTTPSearchProvider(cfg HTTPSearchProviderConfig) *HTTPSearchProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPSearchProviderConfig().Timeout
	}
	return &HTTPSearchProvider{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

// Search issues a GET request for query and returns up to maxResults
// hits. A quota/rate-limit response (429) is treated as a Transient
// failure so the caller can proceed with whatever was already
// gathered (spec §4.8: "search provider over quota ⇒ orchestration
// succeeds with whatever was retrieved").
func (p *HTTPSearchProvider) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	v := url.Values{}
	v.Set("q", query)
	if maxResults > 0 {
		v.Set("max_results", fmt.Sprintf("%d", maxResults))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Endpoint+"?"+v.Encode(), nil)
	if err != nil {
		return nil, weberrors.Permanent("failed to build search request", err)
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, weberrors.Transient("search provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, weberrors.Transient("search provider over quota", nil)
	}
	if resp.StatusCode >= 500 {
		return nil, weberrors.Transient(fmt.Sprintf("search provider returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, weberrors.Permanent(fmt.Sprintf("search provider returned %d", resp.StatusCode), nil)
	}

	var parsed searchProviderResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, weberrors.SoftParse("failed to decode search provider response", err)
	}

	out := make([]SearchResult, 0, len(parsed.Results))
	for i, r := range parsed.Results {
		if maxResults > 0 && i >= maxResults {
			break
		}
		out = append(out, SearchResult{
			URL:       r.URL,
			Title:     r.Title,
			Snippet:   r.Snippet,
			Relevance: r.Relevance,
		})
	}
	return out, nil
}
