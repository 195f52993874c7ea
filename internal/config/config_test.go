package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fiksareport/internal/stats"
)

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("TIMEZONE", "UTC")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	return path
}

func TestLoadConfigFromEnvWithDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Path != "" {
		t.Fatalf("expected no config file, got %q", cfg.Path)
	}
	if cfg.PeriodStartDay != 20 {
		t.Fatalf("unexpected period start default: %d", cfg.PeriodStartDay)
	}
	if cfg.DBPath != "./fiksareport.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.ReportSchedule != "0 * * * *" {
		t.Fatalf("unexpected report schedule default: %q", cfg.ReportSchedule)
	}
	if cfg.ExternalHTTPTimeoutSeconds != int(defaultExternalHTTPTimeout/time.Second) {
		t.Fatalf("unexpected external HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.SourceRetries != 3 || cfg.SourceRetryDelay() != 2*time.Second {
		t.Fatalf("unexpected retry defaults: %d, %s", cfg.SourceRetries, cfg.SourceRetryDelay())
	}
	if cfg.CSVColumns != stats.SheetColumns {
		t.Fatalf("unexpected csv columns default: %+v", cfg.CSVColumns)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if cfg.Taxonomy == nil || cfg.Taxonomy.Len() != len(stats.DefaultClosedStatuses) {
		t.Fatalf("expected default taxonomy, got %v", cfg.ClosedStatuses)
	}
	if cfg.SlackConfigured() || cfg.TelegramConfigured() {
		t.Fatalf("no notification sink should be configured")
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	writeConfig(t, `
timezone: "Asia/Tashkent"
period_start_day: 1
db_path: "/tmp/yaml.db"
report_name: "Fiksa"
operator_aliases:
  "азиза": "Aziza Karimova"
sources:
  - id: aziza
    kind: csv
    path: ./exports/aziza.csv
  - id: bekzod
    kind: sqlite
    table: bekzod_log
    operator: Bekzod
  - id: old
    kind: csv
    path: ./exports/old.csv
    active: false
sqlite_source_path: /data/operators.db
slack_bot_token: "xoxb-yaml"
slack_channel_id: "C123"
`)
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("SOURCE_CONCURRENCY", "2")
	t.Setenv("CLOSED_STATUSES", "closed | resolved, with comma")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("env should override db path, got %q", cfg.DBPath)
	}
	if cfg.SourceConcurrency != 2 {
		t.Fatalf("env should override concurrency, got %d", cfg.SourceConcurrency)
	}
	if cfg.Location.String() != "Asia/Tashkent" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if cfg.PeriodStartDay != 1 {
		t.Fatalf("unexpected period start: %d", cfg.PeriodStartDay)
	}
	if got := cfg.ActiveSources(); len(got) != 2 || got[0].Operator != "aziza" || got[1].Operator != "Bekzod" {
		t.Fatalf("unexpected active sources: %+v", got)
	}
	if labels := cfg.Taxonomy.Labels(); len(labels) != 2 || labels[1] != "resolved, with comma" {
		t.Fatalf("unexpected taxonomy labels: %v", labels)
	}
	if !cfg.SlackConfigured() {
		t.Fatalf("slack should be configured")
	}
	if cfg.OperatorAlias["азиза"] != "Aziza Karimova" {
		t.Fatalf("unexpected aliases: %v", cfg.OperatorAlias)
	}
}

func TestLoadConfigTaxonomyFile(t *testing.T) {
	dir := t.TempDir()
	taxPath := filepath.Join(dir, "taxonomy.yaml")
	if err := os.WriteFile(taxPath, []byte("closed_statuses:\n  - won\n  - lost\n"), 0o644); err != nil {
		t.Fatalf("write taxonomy: %v", err)
	}
	setMinimalEnv(t)
	t.Setenv("TAXONOMY_PATH", taxPath)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Taxonomy.Classify("LOST"); !got.Closed || got.Kind != "lost" {
		t.Fatalf("unexpected classification: %+v", got)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "explicit empty taxonomy", yaml: "closed_statuses: []\n"},
		{name: "duplicate taxonomy label", yaml: "closed_statuses: [Won, won]\n"},
		{name: "blank taxonomy label", yaml: "closed_statuses: [won, \" \"]\n"},
		{name: "empty taxonomy file", env: map[string]string{"TAXONOMY_PATH": "EMPTY"}},
		{name: "bad timezone", env: map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{name: "period start out of range", yaml: "period_start_day: 31\n"},
		{name: "unknown source kind", yaml: "sources:\n  - id: a\n    kind: excel\n    path: a.xlsx\n"},
		{name: "csv source without path", yaml: "sources:\n  - id: a\n    kind: csv\n"},
		{name: "sqlite source without table", yaml: "sqlite_source_path: x.db\nsources:\n  - id: a\n    kind: sqlite\n"},
		{name: "sqlite source without database", yaml: "sources:\n  - id: a\n    kind: sqlite\n    table: t\n"},
		{name: "postgres source without dsn", yaml: "sources:\n  - id: a\n    kind: postgres\n    table: t\n"},
		{name: "duplicate source ids", yaml: "sources:\n  - {id: a, kind: csv, path: a.csv}\n  - {id: a, kind: csv, path: b.csv}\n"},
		{name: "slack token without channel", env: map[string]string{"SLACK_BOT_TOKEN": "xoxb"}},
		{name: "llm digest without key", env: map[string]string{"LLM_DIGEST_ENABLED": "true"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "verbose"}},
		{name: "non-numeric retries", env: map[string]string{"SOURCE_RETRIES": "many"}},
		{name: "short http timeout", env: map[string]string{"EXTERNAL_HTTP_TIMEOUT_SECONDS": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TIMEZONE", "UTC")
			if tt.yaml != "" {
				writeConfig(t, tt.yaml)
			} else {
				t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
			}
			for k, v := range tt.env {
				if v == "EMPTY" {
					v = filepath.Join(t.TempDir(), "empty.yaml")
					if err := os.WriteFile(v, []byte("closed_statuses: []\n"), 0o644); err != nil {
						t.Fatalf("write taxonomy: %v", err)
					}
				}
				t.Setenv(k, v)
			}

			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected LoadConfig to fail")
			}
		})
	}
}
