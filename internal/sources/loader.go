package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fiksareport/internal/stats"
)

// Options controls a LoadAll pass.
type Options struct {
	Window stats.Window
	// Normalizer supplies location and operator aliases; columns come from each source.
	Normalizer stats.Normalizer
	// Attempts per source, at least 1.
	Attempts    int
	Delay       time.Duration
	Concurrency int
	Logger      *zap.Logger
}

// LoadResult tracks per-run counters. Failed and empty sources are left out of
// Batches; the engine treats them as absent.
type LoadResult struct {
	Batches     []stats.Batch
	Sources     int
	RowsRead    int
	RecordsKept int
	Empty       []string
	Failed      []string
	Errors      []error
}

// Err joins every source error, nil when all sources loaded.
func (r LoadResult) Err() error {
	return errors.Join(r.Errors...)
}

// sleepFn waits between attempts; tests replace it.
var sleepFn = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type loaded struct {
	rows    int
	records []stats.Record
	err     error
}

// LoadAll reads every source concurrently, retrying each independently, and
// normalizes the rows into batches. A failing source never fails the run.
func LoadAll(ctx context.Context, srcs []Source, opts Options) LoadResult {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}

	results := make([]loaded, len(srcs))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for i, src := range srcs {
		g.Go(func() error {
			rows, err := readWithRetry(gctx, src, attempts, opts.Delay, logger)
			if err != nil {
				results[i] = loaded{err: err}
				return nil
			}
			cols := src.Columns()
			fillOperator(rows, cols, src.Operator())
			n := opts.Normalizer
			n.Columns = cols
			results[i] = loaded{rows: len(rows), records: n.Normalize(src.ID(), rows, opts.Window)}
			return nil
		})
	}
	_ = g.Wait()

	result := LoadResult{Sources: len(srcs)}
	for i, src := range srcs {
		r := results[i]
		if r.err != nil {
			result.Failed = append(result.Failed, src.ID())
			result.Errors = append(result.Errors, fmt.Errorf("source %s: %w", src.ID(), r.err))
			logger.Warn("source unavailable", zap.String("source", src.ID()), zap.Error(r.err))
			continue
		}
		result.RowsRead += r.rows
		result.RecordsKept += len(r.records)
		if len(r.records) == 0 {
			result.Empty = append(result.Empty, src.ID())
			logger.Debug("source has no records in window", zap.String("source", src.ID()), zap.Int("rows", r.rows))
			continue
		}
		result.Batches = append(result.Batches, stats.Batch{SourceID: src.ID(), Records: r.records})
		logger.Debug("source loaded", zap.String("source", src.ID()), zap.Int("rows", r.rows), zap.Int("records", len(r.records)))
	}
	return result
}

func readWithRetry(ctx context.Context, src Source, attempts int, delay time.Duration, logger *zap.Logger) ([]stats.Row, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		rows, err := src.Rows(ctx)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == attempts {
			break
		}
		logger.Info("source read failed, retrying",
			zap.String("source", src.ID()),
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		if err := sleepFn(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// FormatLoadSummary returns a human-readable summary of a LoadResult.
func FormatLoadSummary(result LoadResult) string {
	if result.Sources == 0 {
		return "No sources configured."
	}
	if len(result.Failed) == result.Sources {
		msgs := make([]string, 0, len(result.Errors))
		for _, err := range result.Errors {
			msgs = append(msgs, err.Error())
		}
		return fmt.Sprintf("Error reading sources:\n%s", strings.Join(msgs, "\n"))
	}

	summary := []string{
		fmt.Sprintf("%d/%d sources loaded", result.Sources-len(result.Failed), result.Sources),
		fmt.Sprintf("%d rows read", result.RowsRead),
		fmt.Sprintf("%d records in window", result.RecordsKept),
	}
	if len(result.Empty) > 0 {
		summary = append(summary, fmt.Sprintf("%d empty (%s)", len(result.Empty), strings.Join(result.Empty, ", ")))
	}
	msg := strings.Join(summary, ", ") + "."
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, err := range result.Errors {
			msgs = append(msgs, err.Error())
		}
		msg += fmt.Sprintf("\nWarnings:\n%s", strings.Join(msgs, "\n"))
	}
	return msg
}
