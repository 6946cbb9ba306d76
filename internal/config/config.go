// Package config loads and validates the pipeline's YAML configuration
// surface: tickers, crypto keywords, provider budgets, filter thresholds
// and the core pipeline knobs.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Tickers is config/tickers.yaml: category -> []symbol.
type Tickers struct {
	Categories map[string][]string `yaml:"categories"`
}

// Flattened returns the deduplicated, uppercased set of all configured
// ticker symbols across every category.
func (t Tickers) Flattened() map[string]bool {
	out := make(map[string]bool)
	for _, symbols := range t.Categories {
		for _, s := range symbols {
			out[strings.ToUpper(strings.TrimSpace(s))] = true
		}
	}
	return out
}

// Keywords is config/keywords.yaml: the crypto-vocabulary list used by
// the lightweight "is this message crypto-relevant at all" classifier.
type Keywords struct {
	Keywords []string `yaml:"keywords"`
}

// MajorToken is one entry in the major-token canonical-address whitelist
// recognized by the filter as a major token.
type MajorToken struct {
	Symbol           string             `yaml:"symbol"`
	CanonicalAddress map[string]string  `yaml:"canonical_address"` // chain -> address
	MinPrice         float64            `yaml:"min_price"`
	MaxPrice         float64            `yaml:"max_price"`
	MinMarketCap     float64            `yaml:"min_market_cap"`
}

// FilterConfig is config/filter.yaml.
type FilterConfig struct {
	MajorTokens          []MajorToken `yaml:"major_tokens"`
	MinPrice             float64      `yaml:"min_price"`
	MinMarketCap         float64      `yaml:"min_market_cap"`
	AllowMissingMarketCap bool        `yaml:"allow_missing_market_cap"`
}

// DefaultFilterConfig returns the baseline filter thresholds.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinPrice:              1e-6,
		MinMarketCap:          0,
		AllowMissingMarketCap: false,
	}
}

// CircuitConfig configures a provider's circuit breaker.
type CircuitConfig struct {
	FailureThreshold float64 `yaml:"failure_threshold"`
	WindowRequests   int     `yaml:"window_requests"`
	ProbeIntervalSec int     `yaml:"probe_interval_seconds"`
}

// ProviderConfig is one entry of config/providers.yaml.
type ProviderConfig struct {
	Name       string         `yaml:"name"`
	BaseURL    string         `yaml:"base_url"`
	APIKey     string         `yaml:"api_key,omitempty"`
	ChainID    string         `yaml:"chain_id,omitempty"` // numeric chain ID string for explorer's multi-chain v2 API
	RPS        float64        `yaml:"rps"`
	Burst      int            `yaml:"burst"`
	TTLSeconds int            `yaml:"ttl_secs"`
	TimeoutMS  int            `yaml:"timeout_ms"`
	Enabled    bool           `yaml:"enabled"`
	Circuit    CircuitConfig  `yaml:"circuit"`
}

// Timeout returns the configured per-call timeout, defaulting to the
// 10s baseline.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// TTL returns the configured response-cache lifetime, defaulting to 5
// minutes when unset.
func (p ProviderConfig) TTL() time.Duration {
	if p.TTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.TTLSeconds) * time.Second
}

// ProvidersConfig is the full provider roster.
type ProvidersConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	// RedisAddr, when set, backs every provider's response cache with a
	// shared redis.Client instead of an in-process map.
	RedisAddr string `yaml:"redis_addr,omitempty"`
}

// PipelineConfig is the core pipeline knob surface.
type PipelineConfig struct {
	ConfidenceThreshold            float64 `yaml:"confidence_threshold"`
	MaxQueueSize                   int     `yaml:"max_queue_size"`
	MessagesPerSecond              float64 `yaml:"messages_per_second"`
	ReputationUpdateIntervalSeconds int    `yaml:"reputation_update_interval_seconds"`
	HistoricalPriceTimeoutSeconds  int     `yaml:"historical_price_timeout_seconds"`
	OHLCFetchTimeoutSeconds        int     `yaml:"ohlc_fetch_timeout_seconds"`
	DrainTimeoutSeconds            int     `yaml:"drain_timeout_seconds"`
	MaxIC                          float64 `yaml:"max_ic"`
	LogLevel                       string  `yaml:"log_level"`
}

// DefaultPipelineConfig returns the baseline pipeline knobs.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ConfidenceThreshold:             0.7,
		MaxQueueSize:                    1000,
		MessagesPerSecond:               2.0,
		ReputationUpdateIntervalSeconds: 1800,
		HistoricalPriceTimeoutSeconds:   15,
		OHLCFetchTimeoutSeconds:         15,
		DrainTimeoutSeconds:             10,
		MaxIC:                           10.0,
		LogLevel:                        "INFO",
	}
}

// ReputationInterval is a convenience accessor.
func (p PipelineConfig) ReputationInterval() time.Duration {
	if p.ReputationUpdateIntervalSeconds <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(p.ReputationUpdateIntervalSeconds) * time.Second
}

// Config is the fully assembled configuration surface.
type Config struct {
	Tickers    Tickers
	Keywords   Keywords
	Filter     FilterConfig
	Providers  ProvidersConfig
	Pipeline   PipelineConfig
	ChatSource ChatSourceConfig
}

// Load reads tickers.yaml and keywords.yaml (required) and filter.yaml,
// providers.yaml, pipeline.yaml and chatsource.yaml (optional) from dir
// and validates the result. Validation rejects an empty ticker set
// together with an empty keyword set, a non-positive queue size or
// message rate, and chat credentials that are present but malformed.
// Absent chat credentials are accepted, and channels.json is not read
// here.
func Load(dir string) (*Config, error) {
	cfg := &Config{
		Filter:   DefaultFilterConfig(),
		Pipeline: DefaultPipelineConfig(),
	}

	if err := loadYAML(dir+"/tickers.yaml", &cfg.Tickers); err != nil {
		return nil, err
	}
	if err := loadYAML(dir+"/keywords.yaml", &cfg.Keywords); err != nil {
		return nil, err
	}
	if err := loadYAMLIfPresent(dir+"/filter.yaml", &cfg.Filter); err != nil {
		return nil, err
	}
	if err := loadYAMLIfPresent(dir+"/providers.yaml", &cfg.Providers); err != nil {
		return nil, err
	}
	if err := loadYAMLIfPresent(dir+"/pipeline.yaml", &cfg.Pipeline); err != nil {
		return nil, err
	}
	if err := loadYAMLIfPresent(dir+"/chatsource.yaml", &cfg.ChatSource); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the startup-abort rules.
func (c *Config) Validate() error {
	if len(c.Tickers.Flattened()) == 0 && len(c.Keywords.Keywords) == 0 {
		return fmt.Errorf("config: ticker set and keyword set are both empty — detector would be non-functional")
	}
	if c.Pipeline.MaxQueueSize <= 0 {
		return fmt.Errorf("config: max_queue_size must be positive")
	}
	if c.Pipeline.MessagesPerSecond <= 0 {
		return fmt.Errorf("config: messages_per_second must be positive")
	}
	if c.ChatSource != (ChatSourceConfig{}) {
		if err := c.ChatSource.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// NormalizeLogLevel falls back to INFO on an invalid level.
func NormalizeLogLevel(level string) string {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
		return strings.ToUpper(level)
	default:
		return "INFO"
	}
}

func loadYAML(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func loadYAMLIfPresent(path string, dest interface{}) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return loadYAML(path, dest)
}
