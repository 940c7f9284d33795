package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// DefaultExpansionModel matches internal/discovery and internal/enrich's
// default so all three LLM call sites can share one local endpoint
// (spec §6: "may be equal").
const DefaultExpansionModel = "qwen3:0.6b"

// DefaultExpansionTimeout bounds the query-expansion LLM call.
const DefaultExpansionTimeout = 10 * time.Second

// LLMExpanderConfig configures an LLMQueryExpander.
type LLMExpanderConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// DefaultLLMExpanderConfig returns sane defaults.
func DefaultLLMExpanderConfig() LLMExpanderConfig {
	return LLMExpanderConfig{Model: DefaultExpansionModel, Timeout: DefaultExpansionTimeout}
}

// LLMQueryExpander implements QueryExpander with a chat-completion call,
// the same openai-go/v2 client shape internal/discovery and
// internal/enrich use for their own LLM call sites.
type LLMQueryExpander struct {
	client sdk.Client
	cfg    LLMExpanderConfig
}

// NewLLMQueryExpander builds an LLMQueryExpander against cfg.
func NewLLMQueryExpander(cfg LLMExpanderConfig) *LLMQueryExpander {
	if cfg.Model == "" {
		cfg.Model = DefaultExpansionModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultExpansionTimeout
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return &LLMQueryExpander{client: sdk.NewClient(opts...), cfg: cfg}
}

const expansionPrompt = `Rewrite the search query below as a single, more explicit phrase naming the specific concepts, APIs, or products it likely refers to. Respond with ONLY the rewritten phrase, nothing else.`

// Expand asks the LLM to rewrite query into a richer phrase. Any failure
// returns the error; Engine.maybeExpand falls back to the literal query.
func (x *LLMQueryExpander) Expand(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
	defer cancel()

	params := sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(x.cfg.Model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(expansionPrompt),
			sdk.UserMessage(query),
		},
	}

	resp, err := x.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("query expansion llm call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("query expansion llm returned no choices")
	}

	expanded := strings.TrimSpace(resp.Choices[0].Message.Content)
	if expanded == "" {
		return "", fmt.Errorf("query expansion llm returned an empty phrase")
	}
	return expanded, nil
}
