// Package enrich implements the LLM JSON-extraction contract (spec
// §4.7): enrich(text) -> Metadata producing topics, keywords,
// summary, concepts, difficulty, languages, and frameworks. On parse
// failure or timeout it returns an empty Metadata and logs;
// enrichment never fails the ingestion of a chunk, matching the
// teacher's own degrade-on-failure posture in
// internal/index/contextual_llm.go.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/Aman-CERP/webkb/internal/store"
)

// Default enrichment configuration.
const (
	DefaultModel   = "qwen3:0.6b"
	DefaultTimeout = 8 * time.Second
	maxInputChars  = 6000
)

// Config configures the Enricher's LLM call site (spec §6: "may be
// equal" to the query-synthesis model/endpoint).
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// DefaultConfig returns sane defaults; Endpoint/APIKey are left for the
// caller to fill from config.LLMConfig.
func DefaultConfig() Config {
	return Config{
		Model:   DefaultModel,
		Timeout: DefaultTimeout,
	}
}

// Metadata is the strict JSON shape an Enricher call produces.
type Metadata struct {
	Topics     []string         `json:"topics"`
	Keywords   []string         `json:"keywords"`
	Summary    string           `json:"summary"`
	Concepts   []string         `json:"concepts"`
	Difficulty store.Difficulty `json:"difficulty"`
	Languages  []string         `json:"languages"`
	Frameworks []string         `json:"frameworks"`
}

// Enricher is the Enricher contract of spec §4.7.
type Enricher interface {
	Enrich(ctx context.Context, text string) Metadata
}

// LLMEnricher backs Enricher with a chat-completion call against an
// OpenAI-compatible endpoint (the same SDK the teacher's pack already
// depends on for query synthesis, see internal/discovery).
type LLMEnricher struct {
	client sdk.Client
	cfg    Config
}

// New builds an LLMEnricher. An empty cfg.Endpoint talks to the default
// OpenAI API; a local/self-hosted OpenAI-compatible gateway works
// identically by setting Endpoint.
func New(cfg Config) *LLMEnricher {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return &LLMEnricher{client: sdk.NewClient(opts...), cfg: cfg}
}

const systemPrompt = `You extract structured metadata from a document chunk. Respond with ONLY a JSON object, no prose, matching exactly this shape:
{"topics":[...],"keywords":[...],"summary":"...","concepts":[...],"difficulty":"beginner|intermediate|advanced","languages":[...],"frameworks":[...]}
Use empty arrays/strings for anything not applicable. Keep summary to one sentence.`

// Enrich extracts Metadata for text. On any failure (LLM unreachable,
// timeout, malformed JSON), it logs and returns a zero-value Metadata —
// the caller proceeds with the chunk unenriched rather than failing
// ingestion (spec §4.7).
func (e *LLMEnricher) Enrich(ctx context.Context, text string) Metadata {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	params := sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(e.cfg.Model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(systemPrompt),
			sdk.UserMessage(truncate(text, maxInputChars)),
		},
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		slog.Warn("enrich: llm call failed", "error", err)
		return Metadata{}
	}
	if len(resp.Choices) == 0 {
		slog.Warn("enrich: llm returned no choices")
		return Metadata{}
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	raw = stripCodeFence(raw)

	var meta Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		slog.Warn("enrich: failed to parse llm json", "error", err)
		return Metadata{}
	}
	return normalize(meta)
}

// stripCodeFence removes a leading/trailing ```json fence some models
// emit despite being asked not to.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func normalize(m Metadata) Metadata {
	switch m.Difficulty {
	case store.DifficultyBeginner, store.DifficultyIntermediate, store.DifficultyAdvanced:
	default:
		m.Difficulty = ""
	}
	return m
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return fmt.Sprintf("%s\n... [truncated]", s[:maxLen])
}
