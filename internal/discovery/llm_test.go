package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletionFixture(content string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-test",
		"object": "chat.completion",
		"created": 0,
		"model": "qwen3:0.6b",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": %q}}],
		"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
	}`, content)
}

func newLLMTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestLLMQuerySynthesizer_SynthesizeQueries_ParsesJSONList(t *testing.T) {
	srv := newLLMTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatCompletionFixture(`{"queries":["widget docs","widget github repo","widget tutorial"]}`))
	})

	s := NewLLMQuerySynthesizer(LLMConfig{Endpoint: srv.URL, APIKey: "k"})

	queries, err := s.SynthesizeQueries(context.Background(), "widgets")
	require.NoError(t, err)
	assert.Equal(t, []string{"widget docs", "widget github repo", "widget tutorial"}, queries)
}

func TestLLMQuerySynthesizer_SynthesizeQueries_StripsCodeFence(t *testing.T) {
	srv := newLLMTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatCompletionFixture("```json\n{\"queries\":[\"a\"]}\n```"))
	})

	s := NewLLMQuerySynthesizer(LLMConfig{Endpoint: srv.URL, APIKey: "k"})

	queries, err := s.SynthesizeQueries(context.Background(), "widgets")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, queries)
}

func TestLLMQuerySynthesizer_SynthesizeQueries_CapsAtMax(t *testing.T) {
	many := `{"queries":["1","2","3","4","5","6","7","8","9","10"]}`
	srv := newLLMTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatCompletionFixture(many))
	})

	s := NewLLMQuerySynthesizer(LLMConfig{Endpoint: srv.URL, APIKey: "k"})

	queries, err := s.SynthesizeQueries(context.Background(), "widgets")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(queries), maxQueriesPerPrompt)
}

func TestLLMQuerySynthesizer_SynthesizeQueries_MalformedJSONReturnsError(t *testing.T) {
	srv := newLLMTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatCompletionFixture("not json"))
	})

	s := NewLLMQuerySynthesizer(LLMConfig{Endpoint: srv.URL, APIKey: "k"})

	_, err := s.SynthesizeQueries(context.Background(), "widgets")
	assert.Error(t, err)
}

func TestLLMQuerySynthesizer_SynthesizeQueries_UnreachableReturnsError(t *testing.T) {
	srv := newLLMTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	s := NewLLMQuerySynthesizer(LLMConfig{Endpoint: srv.URL, APIKey: "k"})

	_, err := s.SynthesizeQueries(context.Background(), "widgets")
	assert.Error(t, err)
}

func TestLLMQuerySynthesizer_SynthesizeAlternatives_ParsesJSONList(t *testing.T) {
	srv := newLLMTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatCompletionFixture(`{"queries":["competitor A intro","competitor B intro"]}`))
	})

	s := NewLLMQuerySynthesizer(LLMConfig{Endpoint: srv.URL, APIKey: "k"})

	queries, err := s.SynthesizeAlternatives(context.Background(), "widgets")
	require.NoError(t, err)
	assert.Equal(t, []string{"competitor A intro", "competitor B intro"}, queries)
}
