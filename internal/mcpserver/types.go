// Package mcpserver exposes the five operations of internal/api (spec §6)
// as Model Context Protocol tools, so an AI client can add sources,
// process the queue, search, check status, and refresh without a CLI.
package mcpserver

import (
	"github.com/Aman-CERP/webkb/internal/catalog"
)

// AddSourcesInput is the input schema for the add_sources tool.
type AddSourcesInput struct {
	Input string `json:"input" jsonschema:"a literal URL, a list of URLs, or a free-text prompt describing what to find"`
}

// AddSourcesOutput is the output schema for the add_sources tool.
type AddSourcesOutput struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// ProcessQueueInput is the input schema for the process_queue tool.
type ProcessQueueInput struct {
	MaxBatches int `json:"max_batches,omitempty" jsonschema:"stop after this many batches, 0 means drain until the queue is empty"`
}

// ProcessQueueOutput is the output schema for the process_queue tool.
type ProcessQueueOutput struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query     string `json:"query" jsonschema:"the search query"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Kind      string `json:"kind,omitempty" jsonschema:"filter by catalog kind: web_page, doc_site_page, repo, video"`
	Domain    string `json:"domain,omitempty" jsonschema:"filter by source domain"`
	Hybrid    *bool  `json:"hybrid,omitempty" jsonschema:"fuse semantic and lexical retrieval, default true"`
	Rerank    *bool  `json:"rerank,omitempty" jsonschema:"apply cross-encoder reranking, default true"`
	Expansion *bool  `json:"expand,omitempty" jsonschema:"expand the query via LLM before retrieval, default true"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
}

// SearchResultOutput is one ranked hit surfaced to MCP callers.
type SearchResultOutput struct {
	Text       string   `json:"text"`
	SourceURL  string   `json:"source_url"`
	Kind       string   `json:"kind"`
	Domain     string   `json:"domain"`
	Summary    string   `json:"summary,omitempty"`
	Topics     []string `json:"topics,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	Score      float64  `json:"score"`
	ScoreKind  string   `json:"score_kind"`
}

// StatusInput is the input schema for the status tool (no parameters).
type StatusInput struct{}

// StatusOutput is the output schema for the status tool.
type StatusOutput struct {
	CatalogByStatus map[catalog.Status]int `json:"catalog_by_status"`
	CatalogByKind   map[catalog.Kind]int   `json:"catalog_by_kind"`
	ChunkCount      int                    `json:"chunk_count"`
	Quota           map[string]int         `json:"quota,omitempty"`
}

// RefreshInput is the input schema for the refresh_once tool (no parameters).
type RefreshInput struct{}

// RefreshOutput is the output schema for the refresh_once tool.
type RefreshOutput struct {
	Checked   int `json:"checked"`
	Unchanged int `json:"unchanged"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}
