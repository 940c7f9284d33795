package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSearchProvider_Search_ParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "widgets", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"url":"https://example.com/a","title":"A","snippet":"s1","relevance":0.9},
			{"url":"https://example.com/b","title":"B","snippet":"s2","relevance":0.5}
		]}`))
	}))
	defer srv.Close()

	p := NewHTTPSearchProvider(HTTPSearchProviderConfig{Endpoint: srv.URL, APIKey: "test-key"})

	results, err := p.Search(context.Background(), "widgets", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://example.com/a", results[0].URL)
	assert.Equal(t, 0.9, results[0].Relevance)
}

func TestHTTPSearchProvider_Search_TruncatesToMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"url":"https://a.com"},{"url":"https://b.com"},{"url":"https://c.com"}]}`))
	}))
	defer srv.Close()

	p := NewHTTPSearchProvider(HTTPSearchProviderConfig{Endpoint: srv.URL})

	results, err := p.Search(context.Background(), "x", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestHTTPSearchProvider_Search_OverQuotaIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewHTTPSearchProvider(HTTPSearchProviderConfig{Endpoint: srv.URL})

	_, err := p.Search(context.Background(), "x", 10)
	require.Error(t, err)
}

func TestHTTPSearchProvider_Search_MalformedJSONReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	p := NewHTTPSearchProvider(HTTPSearchProviderConfig{Endpoint: srv.URL})

	_, err := p.Search(context.Background(), "x", 10)
	require.Error(t, err)
}
