package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for searchradar.
type Config struct {
	Interval     time.Duration
	Database     DatabaseConfig
	Sources      []SourceConfig
	Ingest       IngestConfig
	Relevance    RelevanceConfig
	Company      CompanyConfig
	Embedding    EmbeddingConfig
	AI           AIConfig
	Notification NotificationConfig
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`   // sqlite file path
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// SourceConfig describes one job listing to ingest.
type SourceConfig struct {
	Name              string `yaml:"name"`
	Type              string `yaml:"type"` // "seojobs" or "mock"
	BaseURL           string `yaml:"base_url"`
	MaxPages          int    `yaml:"max_pages"`
	DetailConcurrency int    `yaml:"detail_concurrency"`
	Enabled           bool   `yaml:"enabled"`
}

// IngestConfig tunes fetch politeness and upsert fan-out.
type IngestConfig struct {
	UpsertConcurrency int
	DetailRetries     int
	DetailBackoff     time.Duration // linear: attempt * DetailBackoff
	DetailDelayMin    time.Duration
	DetailDelayMax    time.Duration
	MinDelay          time.Duration // minimum gap between requests to the same host
	RequestTimeout    time.Duration
}

// RelevanceConfig holds the tier thresholds and optional seed override.
type RelevanceConfig struct {
	High   float64  `yaml:"high"`
	Medium float64  `yaml:"medium"`
	Seeds  []string `yaml:"seeds"`
}

// CompanyConfig tunes the company classifier.
type CompanyConfig struct {
	Margin float64 `yaml:"margin"` // competitor must beat client similarity by this much
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "local" or "openai"
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	Dimensions int    `yaml:"dimensions"` // local provider only
}

// AIConfig controls the optional opportunity classifier.
type AIConfig struct {
	Enabled        bool
	Provider       string        // "openai" or "gemini"
	BaseURL        string        // openai only, defaults to https://api.openai.com/v1
	Model          string        // e.g. "gpt-4o-mini"
	APIKey         string        // expanded from env var by Load
	Timeout        time.Duration // per-request timeout
	MaxConcurrency int           // global cap on in-flight calls
	MaxRetries     int
	CacheTTL       time.Duration // zero keeps judgments for the process lifetime
	CacheSize      int           // zero is unbounded
}

// NotificationConfig controls which competitor hook is used.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultGeminiModel   = "gemini-2.0-flash"
	slackWebhookPrefix   = "https://hooks.slack.com/"
)

// ScoringDefaults are the relevance thresholds and company margin used when
// the config leaves them unset.
type ScoringDefaults struct {
	High   float64
	Medium float64
	Margin float64
}

// ScoringDefaultsFor returns the defaults calibrated for an embedding
// provider. The local hash encoder scores on a lower scale than sentence
// embeddings, and its similarities between unrelated names are noisier.
func ScoringDefaultsFor(provider string) ScoringDefaults {
	if provider == "openai" {
		return ScoringDefaults{High: 0.50, Medium: 0.35, Margin: 0.05}
	}
	return ScoringDefaults{High: 0.35, Medium: 0.18, Margin: 0.10}
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Interval     string             `yaml:"interval"`
	Database     DatabaseConfig     `yaml:"database"`
	Sources      []SourceConfig     `yaml:"sources"`
	Ingest       rawIngestConfig    `yaml:"ingest"`
	Relevance    RelevanceConfig    `yaml:"relevance"`
	Company      CompanyConfig      `yaml:"company"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	AI           rawAIConfig        `yaml:"ai"`
	Notification NotificationConfig `yaml:"notification"`
}

type rawIngestConfig struct {
	UpsertConcurrency int    `yaml:"upsert_concurrency"`
	DetailRetries     *int   `yaml:"detail_retries"`
	DetailBackoff     string `yaml:"detail_backoff"`
	DetailDelayMin    string `yaml:"detail_delay_min"`
	DetailDelayMax    string `yaml:"detail_delay_max"`
	MinDelay          string `yaml:"min_delay"`
	RequestTimeout    string `yaml:"request_timeout"`
}

type rawAIConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Provider       string `yaml:"provider"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	Timeout        string `yaml:"timeout"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	MaxRetries     *int   `yaml:"max_retries"`
	CacheTTL       string `yaml:"cache_ttl"`
	CacheSize      int    `yaml:"cache_size"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
// A .env file next to the config (or in the working directory) is loaded first so
// ${VAR} references can be resolved from it. Variables already set win.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	interval, err := parseDuration("interval", raw.Interval, 6*time.Hour)
	if err != nil {
		return nil, err
	}

	ingest, err := buildIngest(raw.Ingest)
	if err != nil {
		return nil, err
	}

	ai, err := buildAI(raw.AI)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Interval:     interval,
		Database:     raw.Database,
		Sources:      raw.Sources,
		Ingest:       ingest,
		Relevance:    raw.Relevance,
		Company:      raw.Company,
		Embedding:    raw.Embedding,
		AI:           ai,
		Notification: raw.Notification,
	}
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadDotEnv(configPath string) error {
	candidates := []string{filepath.Join(filepath.Dir(configPath), ".env"), ".env"}
	for _, p := range candidates {
		err := godotenv.Load(p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func parseDuration(key, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", key, value, err)
	}
	return d, nil
}

func buildIngest(raw rawIngestConfig) (IngestConfig, error) {
	var (
		out IngestConfig
		err error
	)
	out.UpsertConcurrency = raw.UpsertConcurrency
	out.DetailRetries = 3
	if raw.DetailRetries != nil {
		out.DetailRetries = *raw.DetailRetries
	}
	if out.DetailBackoff, err = parseDuration("ingest.detail_backoff", raw.DetailBackoff, time.Second); err != nil {
		return out, err
	}
	if out.DetailDelayMin, err = parseDuration("ingest.detail_delay_min", raw.DetailDelayMin, 500*time.Millisecond); err != nil {
		return out, err
	}
	if out.DetailDelayMax, err = parseDuration("ingest.detail_delay_max", raw.DetailDelayMax, 1500*time.Millisecond); err != nil {
		return out, err
	}
	if out.MinDelay, err = parseDuration("ingest.min_delay", raw.MinDelay, 250*time.Millisecond); err != nil {
		return out, err
	}
	if out.RequestTimeout, err = parseDuration("ingest.request_timeout", raw.RequestTimeout, 30*time.Second); err != nil {
		return out, err
	}
	return out, nil
}

func buildAI(raw rawAIConfig) (AIConfig, error) {
	out := AIConfig{
		Enabled:        raw.Enabled,
		Provider:       strings.ToLower(raw.Provider),
		BaseURL:        raw.BaseURL,
		Model:          raw.Model,
		APIKey:         raw.APIKey,
		MaxConcurrency: raw.MaxConcurrency,
		MaxRetries:     4,
		CacheSize:      raw.CacheSize,
	}
	if raw.MaxRetries != nil {
		out.MaxRetries = *raw.MaxRetries
	}
	var err error
	if out.Timeout, err = parseDuration("ai.timeout", raw.Timeout, 30*time.Second); err != nil {
		return out, err
	}
	if out.CacheTTL, err = parseDuration("ai.cache_ttl", raw.CacheTTL, 0); err != nil {
		return out, err
	}
	return out, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = "searchradar.db"
	}

	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		if s.Type == "" {
			s.Type = s.Name
		}
		if s.MaxPages == 0 {
			s.MaxPages = 3
		}
		if s.DetailConcurrency == 0 {
			s.DetailConcurrency = 5
		}
	}

	if cfg.Ingest.UpsertConcurrency == 0 {
		cfg.Ingest.UpsertConcurrency = 8
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "local"
	}

	scoring := ScoringDefaultsFor(cfg.Embedding.Provider)
	if cfg.Relevance.High == 0 {
		cfg.Relevance.High = scoring.High
	}
	if cfg.Relevance.Medium == 0 {
		cfg.Relevance.Medium = scoring.Medium
	}
	if cfg.Company.Margin == 0 {
		cfg.Company.Margin = scoring.Margin
	}

	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.Provider == "openai" {
		if cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = defaultOpenAIBaseURL
		}
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = "text-embedding-3-small"
		}
	}

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.Provider == "openai" && cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.AI.Model == "" {
		switch cfg.AI.Provider {
		case "gemini":
			cfg.AI.Model = defaultGeminiModel
		default:
			cfg.AI.Model = defaultOpenAIModel
		}
	}
	if cfg.AI.MaxConcurrency == 0 {
		cfg.AI.MaxConcurrency = 3
	}

	if cfg.Notification.Type == "" {
		cfg.Notification.Type = "log"
	}
}

// EnabledSources returns the sources marked enabled, in config order.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func validate(cfg *Config) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", cfg.Interval)
	}

	switch cfg.Database.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required when driver is \"postgres\"")
		}
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Database.Driver)
	}

	if len(cfg.EnabledSources()) == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}
	for _, s := range cfg.Sources {
		if s.Name == "" {
			return fmt.Errorf("every source needs a name")
		}
		if s.MaxPages < 1 {
			return fmt.Errorf("sources[%s].max_pages must be positive, got %d", s.Name, s.MaxPages)
		}
		if s.DetailConcurrency < 1 {
			return fmt.Errorf("sources[%s].detail_concurrency must be positive, got %d", s.Name, s.DetailConcurrency)
		}
	}

	if cfg.Ingest.UpsertConcurrency < 1 {
		return fmt.Errorf("ingest.upsert_concurrency must be positive, got %d", cfg.Ingest.UpsertConcurrency)
	}
	if cfg.Ingest.DetailRetries < 0 {
		return fmt.Errorf("ingest.detail_retries must not be negative, got %d", cfg.Ingest.DetailRetries)
	}
	if cfg.Ingest.DetailDelayMax < cfg.Ingest.DetailDelayMin {
		return fmt.Errorf("ingest.detail_delay_max (%v) must not be below detail_delay_min (%v)",
			cfg.Ingest.DetailDelayMax, cfg.Ingest.DetailDelayMin)
	}

	r := cfg.Relevance
	if r.Medium <= 0 || r.Medium > r.High || r.High > 1 {
		return fmt.Errorf("relevance thresholds must satisfy 0 < medium <= high <= 1, got medium=%v high=%v", r.Medium, r.High)
	}
	if cfg.Company.Margin < 0 || cfg.Company.Margin > 0.5 {
		return fmt.Errorf("company.margin must be between 0 and 0.5, got %v", cfg.Company.Margin)
	}

	switch cfg.Embedding.Provider {
	case "local":
	case "openai":
		if cfg.Embedding.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required when provider is \"openai\"")
		}
	default:
		return fmt.Errorf("embedding.provider must be \"local\" or \"openai\", got %q", cfg.Embedding.Provider)
	}

	if cfg.Notification.Type == "slack" {
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, slackWebhookPrefix) {
			return fmt.Errorf("notification.webhook_url must start with %s", slackWebhookPrefix)
		}
	}

	if cfg.AI.Enabled {
		if cfg.AI.Provider != "openai" && cfg.AI.Provider != "gemini" {
			return fmt.Errorf("ai.provider must be \"openai\" or \"gemini\", got %q", cfg.AI.Provider)
		}
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key is required when ai.enabled is true")
		}
		if cfg.AI.MaxConcurrency < 1 {
			return fmt.Errorf("ai.max_concurrency must be positive, got %d", cfg.AI.MaxConcurrency)
		}
	}

	return nil
}
