package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"fiksareport/internal/config"
	"fiksareport/internal/httpx"
	"fiksareport/internal/integrations/llm"
	slackbot "fiksareport/internal/integrations/slack"
	"fiksareport/internal/integrations/telegram"
	"fiksareport/internal/logging"
	"fiksareport/internal/notify"
	"fiksareport/internal/storage/sqlite"
)

func Main() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// deps is what every command that touches sources or history needs.
type deps struct {
	cfg    config.Config
	logger *zap.Logger
	db     *sql.DB
}

func (d *deps) Close() {
	if d.db != nil {
		_ = d.db.Close()
	}
	_ = d.logger.Sync()
}

func loadDeps() (*deps, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	logger.Info("config loaded",
		zap.String("config_path", cfg.Path),
		zap.String("timezone", cfg.Location.String()),
		zap.Int("period_start_day", cfg.PeriodStartDay),
		zap.Int("sources", len(cfg.ActiveSources())),
		zap.Strings("closed_statuses", cfg.Taxonomy.Labels()),
		zap.Int("source_retries", cfg.SourceRetries),
		zap.Int("source_concurrency", cfg.SourceConcurrency),
		zap.Duration("external_http_timeout", appliedHTTPTimeout),
		logging.Secret("slack_bot_token", cfg.SlackBotToken),
		logging.Secret("telegram_bot_token", cfg.TelegramBotToken),
		logging.Secret("anthropic_api_key", cfg.AnthropicAPIKey),
	)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	logger.Info("database initialized", zap.String("path", cfg.DBPath))

	if err := os.MkdirAll(cfg.ReportOutputDir, 0755); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}
	logger.Info("report output dir", zap.String("path", cfg.ReportOutputDir))
	return &deps{cfg: cfg, logger: logger, db: db}, nil
}

// buildNotifiers returns one sink per configured chat.
func buildNotifiers(cfg config.Config) ([]notify.Notifier, error) {
	var out []notify.Notifier
	if cfg.SlackConfigured() {
		out = append(out, slackbot.NewNotifier(cfg.SlackBotToken, cfg.SlackChannelID,
			slack.OptionHTTPClient(httpx.ExternalHTTPClient())))
	}
	if cfg.TelegramConfigured() {
		tg, err := telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		out = append(out, tg)
	}
	return out, nil
}

func buildNarrator(cfg config.Config, logger *zap.Logger) *llm.Narrator {
	if !cfg.LLMDigestEnabled || strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
		return nil
	}
	return llm.NewNarrator(cfg.AnthropicAPIKey, cfg.LLMModel, logger)
}

func (d *deps) runner() (*Runner, error) {
	notifiers, err := buildNotifiers(d.cfg)
	if err != nil {
		return nil, err
	}
	return NewRunner(d.cfg, d.db, d.logger, notifiers, buildNarrator(d.cfg, d.logger))
}
