package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadAppliesDefaultsWhenOptionalFilesAbsent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tickers.yaml", "categories:\n  major:\n    - eth\n    - BTC\n")
	writeFile(t, dir, "keywords.yaml", "keywords:\n  - moon\n")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"ETH": true, "BTC": true}, cfg.Tickers.Flattened())
	assert.Equal(t, DefaultFilterConfig(), cfg.Filter)
	assert.Equal(t, DefaultPipelineConfig(), cfg.Pipeline)
}

func TestLoadFailsWhenTickersAndKeywordsBothEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tickers.yaml", "categories: {}\n")
	writeFile(t, dir, "keywords.yaml", "keywords: []\n")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadValidatesChatSourceWhenPresent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tickers.yaml", "categories:\n  major:\n    - eth\n")
	writeFile(t, dir, "keywords.yaml", "keywords:\n  - moon\n")
	writeFile(t, dir, "chatsource.yaml", "api_id: 12345\napi_hash: \"short\"\nphone: \"+15551234567\"\n")

	_, err := Load(dir)
	assert.ErrorContains(t, err, "api_hash")
}

func TestLoadSkipsChatSourceValidationWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tickers.yaml", "categories:\n  major:\n    - eth\n")
	writeFile(t, dir, "keywords.yaml", "keywords:\n  - moon\n")

	_, err := Load(dir)
	assert.NoError(t, err)
}

func TestProviderConfigDefaultsTimeoutAndTTL(t *testing.T) {
	pc := ProviderConfig{}
	assert.Equal(t, 10_000_000_000, int(pc.Timeout()))
	assert.Equal(t, 300_000_000_000, int(pc.TTL()))
}

func TestNormalizeLogLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, "DEBUG", NormalizeLogLevel("debug"))
	assert.Equal(t, "INFO", NormalizeLogLevel("nonsense"))
}
