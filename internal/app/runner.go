package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fiksareport/internal/config"
	"fiksareport/internal/integrations/llm"
	"fiksareport/internal/notify"
	"fiksareport/internal/report"
	"fiksareport/internal/sources"
	"fiksareport/internal/stats"
	"fiksareport/internal/storage/sqlite"
)

const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerDigest    = "digest"
)

// ErrNoSourcesLoaded is returned when every configured source failed; the
// previous report is left in place.
var ErrNoSourcesLoaded = errors.New("no source could be read")

// Request selects the window of one run. From/To, when set, replace the
// period selected by Offset.
type Request struct {
	Trigger string
	Offset  int
	From    time.Time
	To      time.Time
	Notify  bool
}

// Outcome is everything one run produced.
type Outcome struct {
	Run       sqlite.Run
	Aggregate *stats.Aggregate
	Load      sources.LoadResult
	Digest    string
	Narrative string
	Notified  notify.Result
}

// Runner executes the load → aggregate → render → store → notify pipeline.
type Runner struct {
	cfg       config.Config
	db        *sql.DB
	engine    *stats.Engine
	logger    *zap.Logger
	notifiers []notify.Notifier
	narrator  *llm.Narrator

	// mu serializes runs: scheduled jobs share the report file and the run store.
	mu sync.Mutex

	// seams for tests
	openSourcesFn func(ctx context.Context, cfg config.Config) (*openedSources, error)
	now           func() time.Time
	newID         func() string
}

func NewRunner(cfg config.Config, db *sql.DB, logger *zap.Logger, notifiers []notify.Notifier, narrator *llm.Narrator) (*Runner, error) {
	engine, err := stats.NewEngine(cfg.Taxonomy, cfg.Location)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:           cfg,
		db:            db,
		engine:        engine,
		logger:        logger,
		notifiers:     notifiers,
		narrator:      narrator,
		openSourcesFn: openSources,
		now:           time.Now,
		newID:         func() string { return uuid.NewString() },
	}, nil
}

// Window resolves the reporting window of req at instant now.
func (r *Runner) Window(req Request, now time.Time) (stats.Window, error) {
	loc := r.cfg.Location
	if req.From.IsZero() && req.To.IsZero() {
		return stats.PeriodWindow(now, req.Offset, r.cfg.PeriodStartDay, loc), nil
	}
	if req.From.IsZero() || req.To.IsZero() {
		return stats.Window{}, errors.New("both from and to are required for a custom window")
	}
	from := stats.DayWindow(req.From, loc).Start
	to := stats.DayWindow(req.To, loc).End
	if to.Before(from) {
		return stats.Window{}, fmt.Errorf("window end %s is before start %s", req.To.Format("2006-01-02"), req.From.Format("2006-01-02"))
	}
	return stats.Window{Start: from, End: to}, nil
}

// Run performs one reporting run. Source failures only shrink the report;
// notification failures are reported in Outcome and never fail the run.
func (r *Runner) Run(ctx context.Context, req Request) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.Trigger == "" {
		req.Trigger = TriggerManual
	}
	startedAt := r.now().In(r.engine.Location())
	w, err := r.Window(req, startedAt)
	if err != nil {
		return Outcome{}, err
	}
	runID := r.newID()
	logger := r.logger.With(zap.String("run_id", runID), zap.String("trigger", req.Trigger))
	logger.Info("report run started", zap.Time("period_start", w.Start), zap.Time("period_end", w.End))

	opened, err := r.openSourcesFn(ctx, r.cfg)
	if err != nil {
		return Outcome{}, fmt.Errorf("opening sources: %w", err)
	}
	defer opened.Close()

	load := sources.LoadAll(ctx, opened.list, sources.Options{
		Window:      w,
		Normalizer:  stats.NewNormalizer(stats.ColumnMap{}, r.engine.Location(), r.cfg.OperatorAlias),
		Attempts:    r.cfg.SourceRetries,
		Delay:       r.cfg.SourceRetryDelay(),
		Concurrency: r.cfg.SourceConcurrency,
		Logger:      logger,
	})
	logger.Info("sources loaded", zap.String("summary", sources.FormatLoadSummary(load)))
	out := Outcome{Load: load}
	if load.Sources > 0 && len(load.Failed) == load.Sources {
		return out, fmt.Errorf("%w: %v", ErrNoSourcesLoaded, load.Err())
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	agg := r.engine.Run(load.Batches, w)
	out.Aggregate = agg
	meta := report.Meta{
		Title:     r.cfg.ReportName,
		Generated: startedAt,
		Sources:   opened.IDs(),
		Failed:    load.Failed,
	}

	content := report.RenderMarkdown(agg, meta) + "\n" + report.RenderDailySummary(report.DailySummary(agg))
	path, err := report.WriteReportFile(content, r.cfg.ReportOutputDir, w.Start, r.cfg.ReportName)
	if err != nil {
		return out, fmt.Errorf("writing report: %w", err)
	}
	logger.Info("report written", zap.String("path", path),
		zap.Int("entities", agg.Total.Entities.Len()),
		zap.Int("closed", agg.Total.Closed.Len()),
		zap.Int("open", agg.Total.Open.Len()),
	)

	run, days := sqlite.Snapshot(runID, req.Trigger, startedAt, agg)
	run.SourcesOK = load.Sources - len(load.Failed)
	run.SourcesFailed = len(load.Failed)
	run.ReportPath = path
	if r.db != nil {
		if err := sqlite.InsertRun(r.db, run, days); err != nil {
			return out, fmt.Errorf("storing run: %w", err)
		}
	}
	out.Run = run

	if !req.Notify {
		return out, nil
	}
	out.Digest = report.Digest(agg, meta)
	text := out.Digest
	if r.narrator != nil {
		narrative, _, err := r.narrator.Narrate(ctx, out.Digest)
		if err != nil {
			logger.Warn("narrative skipped", zap.Error(err))
		} else {
			out.Narrative = narrative
			text = out.Digest + "\n\n" + narrative
		}
	}
	out.Notified = notify.Dispatch(ctx, logger, text, r.notifiers...)
	if len(out.Notified.Sent) > 0 && r.db != nil {
		if err := sqlite.MarkNotified(r.db, runID); err != nil {
			logger.Warn("failed to mark run notified", zap.Error(err))
		} else {
			out.Run.Notified = true
		}
	}
	return out, nil
}

// FormatOutcome is the one-line result printed by the CLI.
func FormatOutcome(o Outcome) string {
	parts := []string{sources.FormatLoadSummary(o.Load)}
	if o.Aggregate != nil {
		t := o.Aggregate.Total
		parts = append(parts, fmt.Sprintf("Touches %d, unique %d, closed %d, open %d.",
			t.Touches, t.Entities.Len(), t.Closed.Len(), t.Open.Len()))
	}
	if o.Run.ReportPath != "" {
		parts = append(parts, "Report: "+o.Run.ReportPath)
	}
	if len(o.Notified.Sent) > 0 {
		parts = append(parts, "Notified: "+strings.Join(o.Notified.Sent, ", "))
	}
	for _, err := range o.Notified.Errors {
		parts = append(parts, "Notification error: "+err.Error())
	}
	return strings.Join(parts, "\n")
}
