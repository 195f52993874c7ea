// Package sqlite keeps a history of report runs. It stores rendered numbers,
// never engine state: every run recomputes its aggregate from the sources.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"fiksareport/internal/stats"
)

// Run is one stored report run.
type Run struct {
	ID            string
	Trigger       string
	StartedAt     time.Time
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Touches       int
	Entities      int
	Closed        int
	Open          int
	SourcesOK     int
	SourcesFailed int
	ReportPath    string
	Notified      bool
}

// DayStat is the per-day snapshot of a run.
type DayStat struct {
	Day          string
	Touches      int
	Entities     int
	Closed       int
	Open         int
	Repeats      int
	LateClosures int
}

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS report_runs (
		id             TEXT PRIMARY KEY,
		trigger_kind   TEXT NOT NULL DEFAULT 'manual',
		started_at     DATETIME NOT NULL,
		period_start   DATETIME NOT NULL,
		period_end     DATETIME NOT NULL,
		touches        INTEGER NOT NULL DEFAULT 0,
		entities       INTEGER NOT NULL DEFAULT 0,
		closed         INTEGER NOT NULL DEFAULT 0,
		open           INTEGER NOT NULL DEFAULT 0,
		sources_ok     INTEGER NOT NULL DEFAULT 0,
		sources_failed INTEGER NOT NULL DEFAULT 0,
		report_path    TEXT DEFAULT '',
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_report_runs_started_at ON report_runs(started_at);

	CREATE TABLE IF NOT EXISTS report_day_stats (
		run_id        TEXT NOT NULL,
		day           TEXT NOT NULL,
		touches       INTEGER NOT NULL,
		entities      INTEGER NOT NULL,
		closed        INTEGER NOT NULL,
		open          INTEGER NOT NULL,
		repeats       INTEGER NOT NULL,
		late_closures INTEGER NOT NULL,
		PRIMARY KEY (run_id, day)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Migration: add notified column if missing.
	var colCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('report_runs') WHERE name = 'notified'`).Scan(&colCount); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("inspect report_runs: %w", err)
	}
	if colCount == 0 {
		if _, err := db.Exec(`ALTER TABLE report_runs ADD COLUMN notified INTEGER NOT NULL DEFAULT 0`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate report_runs.notified: %w", err)
		}
	}

	return db, nil
}

// Snapshot extracts the stored numbers from an aggregate.
func Snapshot(id, trigger string, startedAt time.Time, agg *stats.Aggregate) (Run, []DayStat) {
	run := Run{
		ID:          id,
		Trigger:     trigger,
		StartedAt:   startedAt,
		PeriodStart: agg.Window.Start,
		PeriodEnd:   agg.Window.End,
		Touches:     agg.Total.Touches,
		Entities:    agg.Total.Entities.Len(),
		Closed:      agg.Total.Closed.Len(),
		Open:        agg.Total.Open.Len(),
	}
	days := make([]DayStat, 0, len(agg.ByDay))
	for _, d := range agg.Days() {
		b := agg.ByDay[d]
		days = append(days, DayStat{
			Day:          string(d),
			Touches:      b.Touches,
			Entities:     b.Entities.Len(),
			Closed:       b.Closed.Len(),
			Open:         b.Open.Len(),
			Repeats:      b.Repeats.Len(),
			LateClosures: b.LateClosures.Len(),
		})
	}
	return run, days
}

func InsertRun(db *sql.DB, run Run, days []DayStat) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO report_runs (id, trigger_kind, started_at, period_start, period_end, touches, entities, closed, open, sources_ok, sources_failed, report_path, notified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Trigger, run.StartedAt.UTC(), run.PeriodStart.UTC(), run.PeriodEnd.UTC(),
		run.Touches, run.Entities, run.Closed, run.Open, run.SourcesOK, run.SourcesFailed,
		run.ReportPath, run.Notified,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO report_day_stats (run_id, day, touches, entities, closed, open, repeats, late_closures)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range days {
		if _, err := stmt.Exec(run.ID, d.Day, d.Touches, d.Entities, d.Closed, d.Open, d.Repeats, d.LateClosures); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func MarkNotified(db *sql.DB, runID string) error {
	_, err := db.Exec(`UPDATE report_runs SET notified = 1 WHERE id = ?`, runID)
	return err
}

// ListRuns returns the newest runs first.
func ListRuns(db *sql.DB, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(
		`SELECT id, trigger_kind, started_at, period_start, period_end, touches, entities, closed, open,
		        sources_ok, sources_failed, report_path, notified
		 FROM report_runs ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		err := rows.Scan(
			&r.ID, &r.Trigger, &r.StartedAt, &r.PeriodStart, &r.PeriodEnd,
			&r.Touches, &r.Entities, &r.Closed, &r.Open,
			&r.SourcesOK, &r.SourcesFailed, &r.ReportPath, &r.Notified,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func GetRunDays(db *sql.DB, runID string) ([]DayStat, error) {
	rows, err := db.Query(
		`SELECT day, touches, entities, closed, open, repeats, late_closures
		 FROM report_day_stats WHERE run_id = ? ORDER BY day`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []DayStat
	for rows.Next() {
		var d DayStat
		if err := rows.Scan(&d.Day, &d.Touches, &d.Entities, &d.Closed, &d.Open, &d.Repeats, &d.LateClosures); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
