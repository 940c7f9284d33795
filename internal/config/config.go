package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete webkb configuration. It mirrors the
// configuration surface enumerated in the system's external-interfaces
// design: queue/fetch tuning, chunking bounds, discovery/refresh
// policy, provider endpoints, and storage paths.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Queue      QueueConfig      `yaml:"queue" json:"queue"`
	Fetch      FetchConfig      `yaml:"fetch" json:"fetch"`
	Crawl      CrawlConfig      `yaml:"crawl" json:"crawl"`
	Chunk      ChunkConfig      `yaml:"chunk" json:"chunk"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Discovery  DiscoveryConfig  `yaml:"discovery" json:"discovery"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Refresh    RefreshConfig    `yaml:"refresh" json:"refresh"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig configures on-disk storage roots. Both must be backed up
// together to form a recoverable snapshot.
type PathsConfig struct {
	// WorkspaceRoot is the temporary workspace root used for repository
	// acquisition; scoped per-task and cleaned on every exit path.
	WorkspaceRoot string `yaml:"workspace_root" json:"workspace_root"`
	// CatalogPath is the single-file catalog database.
	CatalogPath string `yaml:"catalog_path" json:"catalog_path"`
	// VectorStorePath is the embedded vector database directory.
	VectorStorePath string `yaml:"vector_store_path" json:"vector_store_path"`
}

// QueueConfig configures the queue processor (spec §4.9, §5).
type QueueConfig struct {
	BatchSize         int `yaml:"batch_size" json:"batch_size"`
	ConcurrentWorkers int `yaml:"concurrent_workers" json:"concurrent_workers"`
	MaxRetries        int `yaml:"max_retries" json:"max_retries"`
	// EnricherConcurrency bounds concurrent LLM enrichment calls per document.
	EnricherConcurrency int `yaml:"enricher_concurrency" json:"enricher_concurrency"`
}

// FetchConfig configures fetcher behavior shared across HTML/repo/video
// fetchers.
type FetchConfig struct {
	PerHostRatePerSecond float64 `yaml:"per_host_rate" json:"per_host_rate"`
	UserAgent            string  `yaml:"user_agent" json:"user_agent"`
	// HTTPTimeoutSeconds bounds a single page fetch; HeadTimeoutSeconds
	// bounds the Refresher's cheap-check HEAD request.
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds" json:"http_timeout_seconds"`
	HeadTimeoutSeconds int `yaml:"head_timeout_seconds" json:"head_timeout_seconds"`
	// Repo acquisition ceilings, per spec §4.4.
	RepoPartialTimeoutSeconds int `yaml:"repo_partial_timeout_seconds" json:"repo_partial_timeout_seconds"`
	RepoFullTimeoutSeconds    int `yaml:"repo_full_timeout_seconds" json:"repo_full_timeout_seconds"`
	RepoAbsoluteTimeoutSeconds int `yaml:"repo_absolute_timeout_seconds" json:"repo_absolute_timeout_seconds"`
	RepoMaxFileBytes          int64 `yaml:"repo_max_file_bytes" json:"repo_max_file_bytes"`
	// TranscriptProvider names the transcript backend adapter to use.
	TranscriptProvider string `yaml:"transcript_provider" json:"transcript_provider"`
	TranscriptEndpoint string `yaml:"transcript_endpoint" json:"transcript_endpoint"`
	TranscriptAPIKey   string `yaml:"transcript_api_key" json:"transcript_api_key"`
	// ChannelMaxVideos / ChannelFullMaxVideos bound VideoChannelExpander.
	ChannelMaxVideos     int `yaml:"channel_max_videos" json:"channel_max_videos"`
	ChannelFullMaxVideos int `yaml:"channel_full_max_videos" json:"channel_full_max_videos"`
}

// CrawlConfig configures the documentation-site crawler (spec §4.5).
type CrawlConfig struct {
	MaxPages          int `yaml:"max_pages" json:"max_pages"`
	SoftTimeBoundSecs int `yaml:"soft_time_bound_seconds" json:"soft_time_bound_seconds"`
}

// ChunkConfig configures the chunker's token bounds (spec §4.6).
type ChunkConfig struct {
	MinTokens     int `yaml:"min_tokens" json:"min_tokens"`
	MaxTokens     int `yaml:"max_tokens" json:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens" json:"overlap_tokens"`
}

// EmbeddingsConfig configures the embedder contract (spec §4.7).
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimension  int    `yaml:"dimension" json:"dimension"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	Endpoint   string `yaml:"endpoint" json:"endpoint"`
}

// LLMConfig configures the two LLM call sites: query synthesis and
// metadata enrichment (spec §6 "may be equal").
type LLMConfig struct {
	Endpoint         string `yaml:"endpoint" json:"endpoint"`
	APIKey           string `yaml:"api_key" json:"api_key"`
	QueryModel       string `yaml:"query_model" json:"query_model"`
	EnrichmentModel  string `yaml:"enrichment_model" json:"enrichment_model"`
	TimeoutSeconds   int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// DiscoveryConfig configures the discovery orchestrator (spec §4.8).
type DiscoveryConfig struct {
	SearchProviderEndpoint  string `yaml:"search_provider_endpoint" json:"search_provider_endpoint"`
	SearchProviderAPIKey    string `yaml:"search_provider_api_key" json:"search_provider_api_key"`
	EnableCompetitorQueries bool   `yaml:"enable_competitor_queries" json:"enable_competitor_queries"`
}

// SearchConfig configures hybrid retrieval (spec §4.11).
type SearchConfig struct {
	// SemanticWeight (w_s) and LexicalWeight (w_k) must sum to 1.0.
	SemanticWeight             float64 `yaml:"semantic_weight" json:"semantic_weight"`
	LexicalWeight              float64 `yaml:"lexical_weight" json:"lexical_weight"`
	RRFConstant                int     `yaml:"rrf_constant" json:"rrf_constant"`
	MaxResults                 int     `yaml:"max_results" json:"max_results"`
	EnableRerank               bool    `yaml:"enable_rerank" json:"enable_rerank"`
	EnableHybrid               bool    `yaml:"enable_hybrid" json:"enable_hybrid"`
	EnableExpansion            bool    `yaml:"enable_expansion" json:"enable_expansion"`
	SimilarityThresholdDefault float64 `yaml:"similarity_threshold_default" json:"similarity_threshold_default"`
	SimilarityThresholdHybrid  float64 `yaml:"similarity_threshold_hybrid" json:"similarity_threshold_hybrid"`
}

// RefreshConfig configures the scheduled refresher (spec §4.10).
type RefreshConfig struct {
	EnableAutoRefresh bool   `yaml:"enable_auto_refresh" json:"enable_auto_refresh"`
	CronExpression    string `yaml:"cron_expression" json:"cron_expression"`
	BatchSize         int    `yaml:"batch_size" json:"batch_size"`
}

// ServerConfig configures the MCP adapter transport and log level.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config populated with the spec's stated defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			WorkspaceRoot:   filepath.Join(os.TempDir(), "webkb", "workspace"),
			CatalogPath:     defaultDataPath("catalog.db"),
			VectorStorePath: defaultDataPath("vectors"),
		},
		Queue: QueueConfig{
			BatchSize:           10,
			ConcurrentWorkers:   3,
			MaxRetries:          3,
			EnricherConcurrency: 2,
		},
		Fetch: FetchConfig{
			PerHostRatePerSecond:       1.0,
			UserAgent:                  "webkb/1.0 (+https://github.com/Aman-CERP/webkb)",
			HTTPTimeoutSeconds:         30,
			HeadTimeoutSeconds:         10,
			RepoPartialTimeoutSeconds:  60,
			RepoFullTimeoutSeconds:     120,
			RepoAbsoluteTimeoutSeconds: 180,
			RepoMaxFileBytes:           1 << 20,
			TranscriptProvider:         "http",
			ChannelMaxVideos:           50,
			ChannelFullMaxVideos:       500,
		},
		Crawl: CrawlConfig{
			MaxPages:          1000,
			SoftTimeBoundSecs: 600,
		},
		Chunk: ChunkConfig{
			MinTokens:     100,
			MaxTokens:     512,
			OverlapTokens: 50,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			Dimension: 768,
			BatchSize: 32,
			Endpoint:  "http://localhost:11434",
		},
		LLM: LLMConfig{
			Endpoint:        "http://localhost:11434",
			QueryModel:      "qwen3:0.6b",
			EnrichmentModel: "qwen3:0.6b",
			TimeoutSeconds:  60,
		},
		Discovery: DiscoveryConfig{
			EnableCompetitorQueries: false,
		},
		Search: SearchConfig{
			SemanticWeight:             0.7,
			LexicalWeight:              0.3,
			RRFConstant:                60,
			MaxResults:                 10,
			EnableRerank:               true,
			EnableHybrid:               true,
			EnableExpansion:            false,
			SimilarityThresholdDefault: 0.3,
			SimilarityThresholdHybrid:  0.4,
		},
		Refresh: RefreshConfig{
			EnableAutoRefresh: true,
			CronExpression:    "0 3 * * 0", // weekly, low-traffic hour
			BatchSize:         100,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

func defaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".webkb", name)
	}
	return filepath.Join(home, ".webkb", name)
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "webkb", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "webkb", "config.yaml")
	}
	return filepath.Join(home, ".config", "webkb", "config.yaml")
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load loads configuration from the specified directory, applying
// sources in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/webkb/config.yaml)
//  3. Workspace config (webkb.yaml in dir)
//  4. Environment variables (WEBKB_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, "webkb.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, "webkb.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.WorkspaceRoot != "" {
		c.Paths.WorkspaceRoot = other.Paths.WorkspaceRoot
	}
	if other.Paths.CatalogPath != "" {
		c.Paths.CatalogPath = other.Paths.CatalogPath
	}
	if other.Paths.VectorStorePath != "" {
		c.Paths.VectorStorePath = other.Paths.VectorStorePath
	}

	if other.Queue.BatchSize != 0 {
		c.Queue.BatchSize = other.Queue.BatchSize
	}
	if other.Queue.ConcurrentWorkers != 0 {
		c.Queue.ConcurrentWorkers = other.Queue.ConcurrentWorkers
	}
	if other.Queue.MaxRetries != 0 {
		c.Queue.MaxRetries = other.Queue.MaxRetries
	}
	if other.Queue.EnricherConcurrency != 0 {
		c.Queue.EnricherConcurrency = other.Queue.EnricherConcurrency
	}

	if other.Fetch.PerHostRatePerSecond != 0 {
		c.Fetch.PerHostRatePerSecond = other.Fetch.PerHostRatePerSecond
	}
	if other.Fetch.UserAgent != "" {
		c.Fetch.UserAgent = other.Fetch.UserAgent
	}
	if other.Fetch.HTTPTimeoutSeconds != 0 {
		c.Fetch.HTTPTimeoutSeconds = other.Fetch.HTTPTimeoutSeconds
	}
	if other.Fetch.HeadTimeoutSeconds != 0 {
		c.Fetch.HeadTimeoutSeconds = other.Fetch.HeadTimeoutSeconds
	}
	if other.Fetch.RepoPartialTimeoutSeconds != 0 {
		c.Fetch.RepoPartialTimeoutSeconds = other.Fetch.RepoPartialTimeoutSeconds
	}
	if other.Fetch.RepoFullTimeoutSeconds != 0 {
		c.Fetch.RepoFullTimeoutSeconds = other.Fetch.RepoFullTimeoutSeconds
	}
	if other.Fetch.RepoAbsoluteTimeoutSeconds != 0 {
		c.Fetch.RepoAbsoluteTimeoutSeconds = other.Fetch.RepoAbsoluteTimeoutSeconds
	}
	if other.Fetch.RepoMaxFileBytes != 0 {
		c.Fetch.RepoMaxFileBytes = other.Fetch.RepoMaxFileBytes
	}
	if other.Fetch.TranscriptProvider != "" {
		c.Fetch.TranscriptProvider = other.Fetch.TranscriptProvider
	}
	if other.Fetch.TranscriptEndpoint != "" {
		c.Fetch.TranscriptEndpoint = other.Fetch.TranscriptEndpoint
	}
	if other.Fetch.TranscriptAPIKey != "" {
		c.Fetch.TranscriptAPIKey = other.Fetch.TranscriptAPIKey
	}
	if other.Fetch.ChannelMaxVideos != 0 {
		c.Fetch.ChannelMaxVideos = other.Fetch.ChannelMaxVideos
	}
	if other.Fetch.ChannelFullMaxVideos != 0 {
		c.Fetch.ChannelFullMaxVideos = other.Fetch.ChannelFullMaxVideos
	}

	if other.Crawl.MaxPages != 0 {
		c.Crawl.MaxPages = other.Crawl.MaxPages
	}
	if other.Crawl.SoftTimeBoundSecs != 0 {
		c.Crawl.SoftTimeBoundSecs = other.Crawl.SoftTimeBoundSecs
	}

	if other.Chunk.MinTokens != 0 {
		c.Chunk.MinTokens = other.Chunk.MinTokens
	}
	if other.Chunk.MaxTokens != 0 {
		c.Chunk.MaxTokens = other.Chunk.MaxTokens
	}
	if other.Chunk.OverlapTokens != 0 {
		c.Chunk.OverlapTokens = other.Chunk.OverlapTokens
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimension != 0 {
		c.Embeddings.Dimension = other.Embeddings.Dimension
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.Endpoint != "" {
		c.Embeddings.Endpoint = other.Embeddings.Endpoint
	}

	if other.LLM.Endpoint != "" {
		c.LLM.Endpoint = other.LLM.Endpoint
	}
	if other.LLM.APIKey != "" {
		c.LLM.APIKey = other.LLM.APIKey
	}
	if other.LLM.QueryModel != "" {
		c.LLM.QueryModel = other.LLM.QueryModel
	}
	if other.LLM.EnrichmentModel != "" {
		c.LLM.EnrichmentModel = other.LLM.EnrichmentModel
	}
	if other.LLM.TimeoutSeconds != 0 {
		c.LLM.TimeoutSeconds = other.LLM.TimeoutSeconds
	}

	if other.Discovery.SearchProviderEndpoint != "" {
		c.Discovery.SearchProviderEndpoint = other.Discovery.SearchProviderEndpoint
	}
	if other.Discovery.SearchProviderAPIKey != "" {
		c.Discovery.SearchProviderAPIKey = other.Discovery.SearchProviderAPIKey
	}
	if other.Discovery.EnableCompetitorQueries {
		c.Discovery.EnableCompetitorQueries = other.Discovery.EnableCompetitorQueries
	}

	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.LexicalWeight != 0 {
		c.Search.LexicalWeight = other.Search.LexicalWeight
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.SimilarityThresholdDefault != 0 {
		c.Search.SimilarityThresholdDefault = other.Search.SimilarityThresholdDefault
	}
	if other.Search.SimilarityThresholdHybrid != 0 {
		c.Search.SimilarityThresholdHybrid = other.Search.SimilarityThresholdHybrid
	}
	if other.Search.EnableExpansion {
		c.Search.EnableExpansion = other.Search.EnableExpansion
	}

	if other.Refresh.CronExpression != "" {
		c.Refresh.CronExpression = other.Refresh.CronExpression
	}
	if other.Refresh.BatchSize != 0 {
		c.Refresh.BatchSize = other.Refresh.BatchSize
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies WEBKB_* environment variable overrides,
// highest precedence.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WEBKB_SEMANTIC_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("WEBKB_LEXICAL_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.LexicalWeight = w
		}
	}
	if v := os.Getenv("WEBKB_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("WEBKB_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("WEBKB_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("WEBKB_EMBEDDINGS_ENDPOINT"); v != "" {
		c.Embeddings.Endpoint = v
	}
	if v := os.Getenv("WEBKB_LLM_ENDPOINT"); v != "" {
		c.LLM.Endpoint = v
	}
	if v := os.Getenv("WEBKB_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("WEBKB_SEARCH_PROVIDER_ENDPOINT"); v != "" {
		c.Discovery.SearchProviderEndpoint = v
	}
	if v := os.Getenv("WEBKB_SEARCH_PROVIDER_API_KEY"); v != "" {
		c.Discovery.SearchProviderAPIKey = v
	}
	if v := os.Getenv("WEBKB_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("WEBKB_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("WEBKB_CATALOG_PATH"); v != "" {
		c.Paths.CatalogPath = v
	}
	if v := os.Getenv("WEBKB_VECTOR_STORE_PATH"); v != "" {
		c.Paths.VectorStorePath = v
	}
	if v := os.Getenv("WEBKB_AUTO_REFRESH"); v != "" {
		c.Refresh.EnableAutoRefresh = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("WEBKB_COMPETITOR_QUERIES"); v != "" {
		c.Discovery.EnableCompetitorQueries = strings.ToLower(v) == "true" || v == "1"
	}
}

func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("search.semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}
	if c.Search.LexicalWeight < 0 || c.Search.LexicalWeight > 1 {
		return fmt.Errorf("search.lexical_weight must be between 0 and 1, got %f", c.Search.LexicalWeight)
	}
	if sum := c.Search.SemanticWeight + c.Search.LexicalWeight; math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("search.semantic_weight + search.lexical_weight must equal 1.0, got %.2f", sum)
	}
	if c.Chunk.MinTokens <= 0 || c.Chunk.MaxTokens <= 0 || c.Chunk.MinTokens > c.Chunk.MaxTokens {
		return fmt.Errorf("chunk.min_tokens/max_tokens invalid: min=%d max=%d", c.Chunk.MinTokens, c.Chunk.MaxTokens)
	}
	if c.Chunk.OverlapTokens < 0 || c.Chunk.OverlapTokens >= c.Chunk.MaxTokens {
		return fmt.Errorf("chunk.overlap_tokens must be in [0, max_tokens), got %d", c.Chunk.OverlapTokens)
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("queue.max_retries must be non-negative, got %d", c.Queue.MaxRetries)
	}
	if c.Fetch.PerHostRatePerSecond <= 0 {
		return fmt.Errorf("fetch.per_host_rate must be positive, got %f", c.Fetch.PerHostRatePerSecond)
	}
	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file. Returns nil config
// and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// RefreshPolicyDays maps a CatalogEntry kind to its default refresh
// policy window in days, per spec §3 ("videos are never; repos 7 days;
// documentation 14; other 30").
func RefreshPolicyDays(kind string) (days int, never bool) {
	switch kind {
	case "video":
		return 0, true
	case "repo":
		return 7, false
	case "doc_site_page":
		return 14, false
	default:
		return 30, false
	}
}
