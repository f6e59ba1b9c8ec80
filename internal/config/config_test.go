package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
interval: 2h
sources:
  - name: seojobs
    base_url: https://seojobs.com/
    max_pages: 2
    enabled: true
  - name: mock
    enabled: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Interval != 2*time.Hour {
		t.Errorf("Interval = %v, want 2h", cfg.Interval)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("Sources = %+v", cfg.Sources)
	}
	s := cfg.Sources[0]
	if s.Type != "seojobs" || s.MaxPages != 2 || s.DetailConcurrency != 5 {
		t.Errorf("Sources[0] = %+v", s)
	}
	if got := cfg.EnabledSources(); len(got) != 1 || got[0].Name != "seojobs" {
		t.Errorf("EnabledSources = %+v", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
sources:
  - name: mock
    enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Interval != 6*time.Hour {
		t.Errorf("Interval = %v, want 6h", cfg.Interval)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "searchradar.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Ingest.UpsertConcurrency != 8 {
		t.Errorf("UpsertConcurrency = %d, want 8", cfg.Ingest.UpsertConcurrency)
	}
	if cfg.Ingest.DetailRetries != 3 || cfg.Ingest.DetailBackoff != time.Second {
		t.Errorf("detail retry = %d/%v, want 3/1s", cfg.Ingest.DetailRetries, cfg.Ingest.DetailBackoff)
	}
	if cfg.Ingest.DetailDelayMin != 500*time.Millisecond || cfg.Ingest.DetailDelayMax != 1500*time.Millisecond {
		t.Errorf("detail delay = %v..%v", cfg.Ingest.DetailDelayMin, cfg.Ingest.DetailDelayMax)
	}
	if cfg.Relevance.High != 0.35 || cfg.Relevance.Medium != 0.18 {
		t.Errorf("Relevance = %+v, want the local encoder defaults", cfg.Relevance)
	}
	if cfg.Company.Margin != 0.10 {
		t.Errorf("Margin = %v, want 0.10", cfg.Company.Margin)
	}
	if cfg.Embedding.Provider != "local" || cfg.Embedding.Dimensions != 384 {
		t.Errorf("Embedding = %+v", cfg.Embedding)
	}
	if cfg.AI.Enabled {
		t.Error("AI.Enabled = true, want false by default")
	}
	if cfg.AI.MaxConcurrency != 3 || cfg.AI.MaxRetries != 4 || cfg.AI.Model != "gpt-4o-mini" {
		t.Errorf("AI = %+v", cfg.AI)
	}
	if cfg.Notification.Type != "log" {
		t.Errorf("Notification.Type = %q, want log", cfg.Notification.Type)
	}
}

func TestLoad_ScoringDefaultsFollowEmbeddingProvider(t *testing.T) {
	path := writeConfig(t, `
sources:
  - name: mock
    enabled: true
embedding:
  provider: openai
  api_key: sk-test
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Relevance.High != 0.50 || cfg.Relevance.Medium != 0.35 || cfg.Company.Margin != 0.05 {
		t.Errorf("openai defaults = %+v / margin %v", cfg.Relevance, cfg.Company.Margin)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("Embedding.Model = %q", cfg.Embedding.Model)
	}

	path = writeConfig(t, `
sources:
  - name: mock
    enabled: true
relevance:
  high: 0.6
  medium: 0.4
`)
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Relevance.High != 0.6 || cfg.Relevance.Medium != 0.4 {
		t.Errorf("explicit thresholds overridden: %+v", cfg.Relevance)
	}
}

func TestLoad_ExplicitZeroRetries(t *testing.T) {
	path := writeConfig(t, `
sources:
  - name: mock
    enabled: true
ingest:
  detail_retries: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ingest.DetailRetries != 0 {
		t.Errorf("DetailRetries = %d, want 0", cfg.Ingest.DetailRetries)
	}
}

func TestLoad_ExpandsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SEARCHRADAR_TEST_KEY=sk-from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	content := `
sources:
  - name: mock
    enabled: true
ai:
  enabled: true
  api_key: ${SEARCHRADAR_TEST_KEY}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("SEARCHRADAR_TEST_KEY") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.APIKey != "sk-from-dotenv" {
		t.Errorf("AI.APIKey = %q, want sk-from-dotenv", cfg.AI.APIKey)
	}
	if cfg.AI.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("AI.BaseURL = %q", cfg.AI.BaseURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "interval: [broken")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "no enabled source",
			content: `
sources:
  - name: mock
    enabled: false
`,
			wantErr: "at least one source",
		},
		{
			name: "bad interval",
			content: `
interval: soon
sources:
  - name: mock
    enabled: true
`,
			wantErr: "parse interval",
		},
		{
			name: "inverted thresholds",
			content: `
sources:
  - name: mock
    enabled: true
relevance:
  high: 0.3
  medium: 0.4
`,
			wantErr: "relevance thresholds",
		},
		{
			name: "postgres without dsn",
			content: `
database:
  driver: postgres
sources:
  - name: mock
    enabled: true
`,
			wantErr: "database.dsn",
		},
		{
			name: "slack without webhook",
			content: `
sources:
  - name: mock
    enabled: true
notification:
  type: slack
`,
			wantErr: "webhook_url is required",
		},
		{
			name: "slack with foreign webhook",
			content: `
sources:
  - name: mock
    enabled: true
notification:
  type: slack
  webhook_url: https://example.com/hook
`,
			wantErr: "must start with",
		},
		{
			name: "ai enabled without key",
			content: `
sources:
  - name: mock
    enabled: true
ai:
  enabled: true
`,
			wantErr: "ai.api_key",
		},
		{
			name: "unknown ai provider",
			content: `
sources:
  - name: mock
    enabled: true
ai:
  enabled: true
  provider: claude
  api_key: k
`,
			wantErr: "ai.provider",
		},
		{
			name: "delay window inverted",
			content: `
sources:
  - name: mock
    enabled: true
ingest:
  detail_delay_min: 2s
  detail_delay_max: 1s
`,
			wantErr: "detail_delay_max",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load: expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}
