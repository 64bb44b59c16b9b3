// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"INK_HOST" yaml:"host"`
	Port int    `envconfig:"INK_PORT" yaml:"port"`

	// Knowledge configuration
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// Classifier configuration
	Classify ClassifyConfig `yaml:"classify"`

	// Retriever configuration
	Retrieve RetrieveConfig `yaml:"retrieve"`

	// Router configuration
	Router RouterConfig `yaml:"router"`

	// Cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// KnowledgeConfig holds knowledge corpus settings.
type KnowledgeConfig struct {
	// CorpusDir is a directory of per-pipeline YAML corpus files.
	// Empty means the built-in corpus only.
	CorpusDir string `envconfig:"INK_CORPUS_DIR" yaml:"corpus_dir"`

	// Watch enables hot reload of the corpus directory.
	Watch bool `envconfig:"INK_CORPUS_WATCH" yaml:"watch"`

	// WatchDebounceMs batches rapid file events before a reload.
	WatchDebounceMs int `envconfig:"INK_CORPUS_WATCH_DEBOUNCE_MS" yaml:"watch_debounce_ms"`
}

// ClassifyConfig holds query classification settings.
type ClassifyConfig struct {
	// ProbeMargin is the score distance from the top-ranked pipeline within
	// which additional pipelines are also probed.
	ProbeMargin float64 `envconfig:"INK_PROBE_MARGIN" yaml:"probe_margin"`

	// ContinuityBoost is added to the pipeline that answered the previous
	// assistant turn.
	ContinuityBoost float64 `envconfig:"INK_CONTINUITY_BOOST" yaml:"continuity_boost"`

	// TriggerWeight is the extra weight for pipeline trigger keywords.
	TriggerWeight float64 `envconfig:"INK_TRIGGER_WEIGHT" yaml:"trigger_weight"`
}

// RetrieveConfig holds retrieval/scoring settings.
type RetrieveConfig struct {
	// ScoreFloor is the minimum candidate score; entries below it are dropped.
	ScoreFloor float64 `envconfig:"INK_SCORE_FLOOR" yaml:"score_floor"`

	// ShortQueryPenalty is subtracted for queries under three tokens.
	ShortQueryPenalty float64 `envconfig:"INK_SHORT_QUERY_PENALTY" yaml:"short_query_penalty"`
}

// RouterConfig holds answer-path settings.
type RouterConfig struct {
	// QueryTimeoutMs bounds the classify-retrieve-compose path per query.
	QueryTimeoutMs int `envconfig:"INK_QUERY_TIMEOUT_MS" yaml:"query_timeout_ms"`

	// HistoryTurns is how many recent turns participate in cache keys and
	// classification.
	HistoryTurns int `envconfig:"INK_HISTORY_TURNS" yaml:"history_turns"`

	// MeterWorkers is the size of the fire-and-forget metering pool.
	MeterWorkers int `envconfig:"INK_METER_WORKERS" yaml:"meter_workers"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type     string `envconfig:"INK_CACHE_TYPE" yaml:"type"` // memory, redis, off
	Size     int    `envconfig:"INK_CACHE_SIZE" yaml:"size"`
	Profile  string `envconfig:"INK_CACHE_PROFILE" yaml:"profile"` // aggressive, moderate, conservative
	RedisURL string `envconfig:"INK_REDIS_URL" yaml:"redis_url"`
}

// BusConfig holds metering bus settings.
type BusConfig struct {
	Type          string `envconfig:"INK_BUS_TYPE" yaml:"type"` // memory, kafka
	KafkaBrokers  string `envconfig:"INK_KAFKA_BROKERS" yaml:"kafka_brokers"`
	ConsumerGroup string `envconfig:"INK_KAFKA_CONSUMER_GROUP" yaml:"consumer_group"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"INK_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"INK_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	APIKey    string `envconfig:"INK_API_KEY" yaml:"api_key"`
	RateLimit int    `envconfig:"INK_RATE_LIMIT" yaml:"rate_limit"` // req/sec per client, 0 = disabled
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	MetricsEnabled bool   `envconfig:"INK_METRICS_ENABLED" yaml:"metrics_enabled"`
	MetricsPath    string `envconfig:"INK_METRICS_PATH" yaml:"metrics_path"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	cfg.Knowledge = KnowledgeConfig{
		WatchDebounceMs: 500,
	}

	cfg.Classify = ClassifyConfig{
		ProbeMargin:     0.15,
		ContinuityBoost: 0.1,
		TriggerWeight:   0.25,
	}

	cfg.Retrieve = RetrieveConfig{
		ScoreFloor:        0.2,
		ShortQueryPenalty: 0.1,
	}

	cfg.Router = RouterConfig{
		QueryTimeoutMs: 2000,
		HistoryTurns:   6,
		MeterWorkers:   4,
	}

	cfg.Cache = CacheConfig{
		Type:     "memory",
		Size:     1000,
		Profile:  "moderate",
		RedisURL: "redis://localhost:6379",
	}

	cfg.Bus = BusConfig{
		Type:          "memory",
		ConsumerGroup: "ink-router",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Security = SecurityConfig{
		RateLimit: 0,
	}

	cfg.Observability = ObservabilityConfig{
		MetricsEnabled: true,
		MetricsPath:    "/metrics",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	// Classifier validation
	if c.Classify.ProbeMargin < 0 || c.Classify.ProbeMargin > 1 {
		errs = append(errs, "probe_margin must be between 0 and 1")
	}

	if c.Classify.ContinuityBoost < 0 || c.Classify.ContinuityBoost > 1 {
		errs = append(errs, "continuity_boost must be between 0 and 1")
	}

	// Retriever validation
	if c.Retrieve.ScoreFloor < 0 || c.Retrieve.ScoreFloor > 1 {
		errs = append(errs, "score_floor must be between 0 and 1")
	}

	// Router validation
	if c.Router.QueryTimeoutMs < 1 {
		errs = append(errs, "query_timeout_ms must be positive")
	}

	if c.Router.HistoryTurns < 0 {
		errs = append(errs, "history_turns must not be negative")
	}

	// Cache validation
	validCacheTypes := map[string]bool{"memory": true, "redis": true, "off": true}
	if !validCacheTypes[c.Cache.Type] {
		errs = append(errs, fmt.Sprintf("invalid cache type: %s (must be memory, redis, or off)", c.Cache.Type))
	}

	validProfiles := map[string]bool{"aggressive": true, "moderate": true, "conservative": true}
	if !validProfiles[c.Cache.Profile] {
		errs = append(errs, fmt.Sprintf("invalid cache profile: %s (must be aggressive, moderate, or conservative)", c.Cache.Profile))
	}

	// Bus validation
	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}

	if c.Bus.Type == "kafka" && c.Bus.KafkaBrokers == "" {
		errs = append(errs, "kafka_brokers is required when bus type is kafka")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaBrokerList splits the comma-separated broker string.
func (b BusConfig) KafkaBrokerList() []string {
	if b.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(b.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
