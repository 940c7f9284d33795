package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ZeroValuesNotMerged(t *testing.T) {
	tmpDir := t.TempDir()
	// max_results: 0 in YAML must not stomp the default of 10 — zero
	// values are "unset" in the merge semantics, not explicit overrides.
	configContent := "version: 1\nsearch:\n  max_results: 0\n  rrf_constant: 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "webkb.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
}

func TestLoad_WeightsSumValidated(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "version: 1\nsearch:\n  semantic_weight: 0.9\n  lexical_weight: 0.5\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "webkb.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "semantic_weight")
	assert.Contains(t, err.Error(), "lexical_weight")
}

func TestLoad_ChunkBoundsValidated(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "version: 1\nchunk:\n  min_tokens: 600\n  max_tokens: 512\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "webkb.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "chunk.min_tokens")
}

func TestLoad_ChunkOverlapMustBeLessThanMax(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "version: 1\nchunk:\n  min_tokens: 100\n  max_tokens: 200\n  overlap_tokens: 200\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "webkb.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "overlap_tokens")
}

func TestLoad_NegativeMaxRetriesValidated(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "version: 1\nqueue:\n  max_retries: -1\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "webkb.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "max_retries")
}

func TestLoad_NonPositivePerHostRateValidated(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "version: 1\nfetch:\n  per_host_rate: 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "webkb.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "per_host_rate")
}

func TestLoad_InvalidTransportValidated(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "version: 1\nserver:\n  transport: carrier-pigeon\n  log_level: info\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "webkb.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "transport")
}

func TestLoad_InvalidLogLevelValidated(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "version: 1\nserver:\n  transport: stdio\n  log_level: verbose\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "webkb.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "log_level")
}

func TestLoad_UnreadableConfigFile_ReturnsError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root: file permission bits are not enforced")
	}
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "webkb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))
	require.NoError(t, os.Chmod(path, 0o000))
	defer os.Chmod(path, 0o644)

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestConfig_JSON_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Chunk.MaxTokens = 1024
	cfg.Search.SemanticWeight = 0.6
	cfg.Search.LexicalWeight = 0.4
	cfg.Search.RRFConstant = 40

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var roundTripped Config
	require.NoError(t, json.Unmarshal(data, &roundTripped))

	assert.Equal(t, 1024, roundTripped.Chunk.MaxTokens)
	assert.Equal(t, 0.6, roundTripped.Search.SemanticWeight)
	assert.Equal(t, 0.4, roundTripped.Search.LexicalWeight)
	assert.Equal(t, 40, roundTripped.Search.RRFConstant)
}

func TestNewConfig_PathsUseHomeDir(t *testing.T) {
	cfg := NewConfig()
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Contains(t, cfg.Paths.CatalogPath, home)
	assert.Contains(t, cfg.Paths.VectorStorePath, home)
}

func TestValidate_AcceptsDefaultConfig(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangeWeight(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.SemanticWeight = 1.5

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "semantic_weight")
}
