package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const (
	// DefaultQueryModel matches internal/enrich's default so a single
	// local endpoint can serve both call sites (spec §6: "may be equal").
	DefaultQueryModel = "qwen3:0.6b"
	DefaultLLMTimeout = 20 * time.Second

	maxQueriesPerPrompt      = 8
	maxAlternativesPerPrompt = 5
)

// LLMConfig configures the query-synthesis LLM call site.
type LLMConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// DefaultLLMConfig returns sane defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{Model: DefaultQueryModel, Timeout: DefaultLLMTimeout}
}

// LLMQuerySynthesizer backs QuerySynthesizer with a chat-completion
// call, the same openai-go/v2 client shape internal/enrich uses.
type LLMQuerySynthesizer struct {
	client sdk.Client
	cfg    LLMConfig
}

// NewLLMQuerySynthesizer builds an LLMQuerySynthesizer against cfg.
func NewLLMQuerySynthesizer(cfg LLMConfig) *LLMQuerySynthesizer {
	if cfg.Model == "" {
		cfg.Model = DefaultQueryModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return &LLMQuerySynthesizer{client: sdk.NewClient(opts...), cfg: cfg}
}

const querySynthesisPrompt = `You turn a topic or prompt into a short list of web search queries aimed at diverse source types: official documentation, the project's source repository, tutorial/blog writeups, and video walkthroughs. Respond with ONLY a JSON object: {"queries": ["...", ...]}. Produce at most %d queries.`

const alternativesPrompt = `Name competing or alternative technologies/products to the one described below, and for each produce one web search query that would find an introduction to it. Respond with ONLY a JSON object: {"queries": ["...", ...]}. Produce at most %d queries.`

// SynthesizeQueries asks the LLM for a diverse set of search queries
// for prompt. On any failure it returns the error; callers fall back
// to treating the prompt as a single literal query (spec §4.8).
func (s *LLMQuerySynthesizer) SynthesizeQueries(ctx context.Context, prompt string) ([]string, error) {
	return s.synthesize(ctx, fmt.Sprintf(querySynthesisPrompt, maxQueriesPerPrompt), prompt, maxQueriesPerPrompt)
}

// SynthesizeAlternatives asks the LLM to name competing/alternative
// technologies and a query for each (spec §4.8 step 3).
func (s *LLMQuerySynthesizer) SynthesizeAlternatives(ctx context.Context, prompt string) ([]string, error) {
	return s.synthesize(ctx, fmt.Sprintf(alternativesPrompt, maxAlternativesPerPrompt), prompt, maxAlternativesPerPrompt)
}

func (s *LLMQuerySynthesizer) synthesize(ctx context.Context, systemPrompt, userPrompt string, max int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	params := sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(s.cfg.Model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(systemPrompt),
			sdk.UserMessage(userPrompt),
		},
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("query synthesis llm call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("query synthesis llm returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	raw = stripCodeFence(raw)

	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("query synthesis returned unparseable json: %w", err)
	}

	if len(parsed.Queries) > max {
		parsed.Queries = parsed.Queries[:max]
	}
	return parsed.Queries, nil
}

// stripCodeFence removes a leading/trailing ```json fence some models
// emit despite being asked not to — same helper internal/enrich uses.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
