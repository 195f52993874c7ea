package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"fiksareport/internal/stats"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	SourceCSV      = "csv"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// SourceConfig describes one operator table.
type SourceConfig struct {
	ID       string `yaml:"id" validate:"required"`
	Kind     string `yaml:"kind" validate:"required,oneof=csv sqlite postgres"`
	Path     string `yaml:"path" validate:"required_if=Kind csv"`
	Table    string `yaml:"table" validate:"required_unless=Kind csv"`
	Operator string `yaml:"operator"`
	// Active defaults to true; inactive sources are skipped without a warning.
	Active *bool `yaml:"active"`
}

func (s SourceConfig) Enabled() bool {
	return s.Active == nil || *s.Active
}

// SQLColumns names the columns SQL sources select, in engine order.
type SQLColumns struct {
	Entity    string `yaml:"entity" validate:"required"`
	Status    string `yaml:"status" validate:"required"`
	Operator  string `yaml:"operator" validate:"required"`
	Timestamp string `yaml:"timestamp" validate:"required"`
}

type Config struct {
	Timezone       string            `yaml:"timezone"`
	PeriodStartDay int               `yaml:"period_start_day"`
	ClosedStatuses []string          `yaml:"closed_statuses"`
	TaxonomyPath   string            `yaml:"taxonomy_path"`
	OperatorAlias  map[string]string `yaml:"operator_aliases"`

	Sources          []SourceConfig  `yaml:"sources" validate:"unique=ID,dive"`
	CSVColumns       stats.ColumnMap `yaml:"csv_columns"`
	SQLColumns       SQLColumns      `yaml:"sql_columns"`
	SQLiteSourcePath string          `yaml:"sqlite_source_path"`
	PostgresDSN      string          `yaml:"postgres_dsn"`

	SourceRetries      int `yaml:"source_retries"`
	SourceRetryDelayMS int `yaml:"source_retry_delay_ms"`
	SourceConcurrency  int `yaml:"source_concurrency"`

	DBPath          string `yaml:"db_path"`
	ReportOutputDir string `yaml:"report_output_dir"`
	ReportName      string `yaml:"report_name"`
	ReportSchedule  string `yaml:"report_schedule"`
	DigestSchedule  string `yaml:"digest_schedule"`

	SlackBotToken    string `yaml:"slack_bot_token"`
	SlackChannelID   string `yaml:"slack_channel_id"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`

	AnthropicAPIKey  string `yaml:"anthropic_api_key"`
	LLMModel         string `yaml:"llm_model"`
	LLMDigestEnabled bool   `yaml:"llm_digest_enabled"`

	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	LogLevel                   string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat                  string `yaml:"log_format" validate:"oneof=json console"`

	Path     string          `yaml:"-"` // file the config was read from, empty if none
	Location *time.Location  `yaml:"-"` // computed from Timezone, not from YAML
	Taxonomy *stats.Taxonomy `yaml:"-"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig reads config.yaml (or CONFIG_PATH), applies environment
// overrides and defaults, then validates. A missing file is not an error.
func LoadConfig() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", configPath, err)
		}
		cfg.Path = configPath
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", configPath, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := finish(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.TaxonomyPath, "TAXONOMY_PATH")
	envOverride(&cfg.SQLiteSourcePath, "SQLITE_SOURCE_PATH")
	envOverride(&cfg.PostgresDSN, "POSTGRES_DSN")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	envOverride(&cfg.ReportName, "REPORT_NAME")
	envOverride(&cfg.ReportSchedule, "REPORT_SCHEDULE")
	envOverrideAllowEmpty(&cfg.DigestSchedule, "DIGEST_SCHEDULE")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	envOverride(&cfg.TelegramChatID, "TELEGRAM_CHAT_ID")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.LogFormat, "LOG_FORMAT")
	envOverrideBool(&cfg.LLMDigestEnabled, "LLM_DIGEST_ENABLED")

	for key, field := range map[string]*int{
		"PERIOD_START_DAY":              &cfg.PeriodStartDay,
		"SOURCE_RETRIES":                &cfg.SourceRetries,
		"SOURCE_RETRY_DELAY_MS":         &cfg.SourceRetryDelayMS,
		"SOURCE_CONCURRENCY":            &cfg.SourceConcurrency,
		"EXTERNAL_HTTP_TIMEOUT_SECONDS": &cfg.ExternalHTTPTimeoutSeconds,
	} {
		if err := envOverrideInt(field, key); err != nil {
			return err
		}
	}

	// Labels may contain commas, so the env form is pipe separated.
	if labels, ok := os.LookupEnv("CLOSED_STATUSES"); ok {
		cfg.ClosedStatuses = splitList(labels, "|")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.PeriodStartDay == 0 {
		cfg.PeriodStartDay = stats.DefaultPeriodStartDay
	}
	if cfg.CSVColumns == (stats.ColumnMap{}) {
		cfg.CSVColumns = stats.SheetColumns
	}
	if cfg.SQLColumns == (SQLColumns{}) {
		cfg.SQLColumns = SQLColumns{Entity: "card_id", Status: "status", Operator: "operator", Timestamp: "fixed_at"}
	}
	if cfg.SourceRetries == 0 {
		cfg.SourceRetries = 3
	}
	if cfg.SourceRetryDelayMS == 0 {
		cfg.SourceRetryDelayMS = 2000
	}
	if cfg.SourceConcurrency == 0 {
		cfg.SourceConcurrency = 4
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./fiksareport.db"
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./reports"
	}
	if cfg.ReportName == "" {
		cfg.ReportName = "Statistics"
	}
	if cfg.ReportSchedule == "" {
		cfg.ReportSchedule = "0 * * * *"
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = "claude-sonnet-4-5"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		s.ID = strings.TrimSpace(s.ID)
		s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
		if s.Operator == "" {
			s.Operator = s.ID
		}
	}
}

// finish validates the loaded values and computes the derived fields.
func finish(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return describeValidation(err)
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if cfg.PeriodStartDay < 1 || cfg.PeriodStartDay > 28 {
		return fmt.Errorf("invalid period_start_day '%d': must be between 1 and 28", cfg.PeriodStartDay)
	}
	if cfg.SourceRetries < 1 {
		return fmt.Errorf("invalid source_retries '%d': must be >= 1", cfg.SourceRetries)
	}
	if cfg.SourceRetryDelayMS < 0 {
		return fmt.Errorf("invalid source_retry_delay_ms '%d': must be >= 0", cfg.SourceRetryDelayMS)
	}
	if cfg.SourceConcurrency < 1 {
		return fmt.Errorf("invalid source_concurrency '%d': must be >= 1", cfg.SourceConcurrency)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}
	if (cfg.SlackBotToken == "") != (cfg.SlackChannelID == "") {
		return errors.New("slack_bot_token and slack_channel_id must be set together")
	}
	if (cfg.TelegramBotToken == "") != (cfg.TelegramChatID == "") {
		return errors.New("telegram_bot_token and telegram_chat_id must be set together")
	}
	if cfg.LLMDigestEnabled && cfg.AnthropicAPIKey == "" {
		return errors.New("anthropic_api_key is required when llm_digest_enabled=true")
	}
	for _, s := range cfg.Sources {
		switch {
		case s.Kind == SourceSQLite && s.Path == "" && cfg.SQLiteSourcePath == "":
			return fmt.Errorf("source '%s': sqlite sources need path or sqlite_source_path", s.ID)
		case s.Kind == SourcePostgres && cfg.PostgresDSN == "":
			return fmt.Errorf("source '%s': postgres sources need postgres_dsn", s.ID)
		}
	}

	tax, err := loadTaxonomy(cfg)
	if err != nil {
		return err
	}
	cfg.Taxonomy = tax
	return nil
}

// loadTaxonomy resolves the closed-status labels. An unset list means the
// production defaults; an explicitly empty one is a misconfiguration.
func loadTaxonomy(cfg *Config) (*stats.Taxonomy, error) {
	labels := cfg.ClosedStatuses
	if cfg.TaxonomyPath != "" {
		data, err := os.ReadFile(cfg.TaxonomyPath)
		if err != nil {
			return nil, fmt.Errorf("read taxonomy: %w", err)
		}
		var file struct {
			ClosedStatuses []string `yaml:"closed_statuses"`
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse taxonomy yaml: %w", err)
		}
		if file.ClosedStatuses == nil {
			file.ClosedStatuses = []string{}
		}
		labels = file.ClosedStatuses
	}
	if labels == nil {
		labels = stats.DefaultClosedStatuses
	}
	tax, err := stats.NewTaxonomy(labels)
	if err != nil {
		return nil, fmt.Errorf("closed_statuses: %w", err)
	}
	cfg.ClosedStatuses = tax.Labels()
	return tax, nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got '%v')", field, fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ActiveSources lists the sources that should be read this run.
func (c Config) ActiveSources() []SourceConfig {
	out := make([]SourceConfig, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.Enabled() {
			out = append(out, s)
		}
	}
	return out
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func (c Config) TelegramConfigured() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

func (c Config) SourceRetryDelay() time.Duration {
	return time.Duration(c.SourceRetryDelayMS) * time.Millisecond
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func splitList(s, sep string) []string {
	out := []string{}
	for _, item := range strings.Split(s, sep) {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
