package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"fiksareport/internal/stats"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "fiksareport-test.db")
	db, err := InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testAggregate(t *testing.T) *stats.Aggregate {
	t.Helper()
	e, err := stats.NewEngine(stats.MustTaxonomy(stats.DefaultClosedStatuses), time.UTC)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	day := func(d, h int) time.Time { return time.Date(2025, 1, d, h, 0, 0, 0, time.UTC) }
	w := stats.PeriodWindow(day(5, 0), 0, 20, time.UTC)
	return e.Aggregate([]stats.Record{
		{EntityID: "C100", Status: "", Operator: "Aziza", Timestamp: day(5, 9)},
		{EntityID: "C100", Status: "положительный", Operator: "Aziza", Timestamp: day(9, 10)},
		{EntityID: "C101", Status: "", Operator: "Aziza", Timestamp: day(9, 11)},
	}, w, nil)
}

func TestInitDBAddsNotifiedColumn(t *testing.T) {
	db := newTestDB(t)

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('report_runs') WHERE name = 'notified'`).Scan(&count); err != nil {
		t.Fatalf("query pragma_table_info failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected notified column to exist, count=%d", count)
	}
}

func TestInitDBMigratesLegacyRunsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	legacy, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open legacy db: %v", err)
	}
	_, err = legacy.Exec(`
		CREATE TABLE report_runs (
			id TEXT PRIMARY KEY, trigger_kind TEXT NOT NULL DEFAULT 'manual',
			started_at DATETIME NOT NULL, period_start DATETIME NOT NULL, period_end DATETIME NOT NULL,
			touches INTEGER NOT NULL DEFAULT 0, entities INTEGER NOT NULL DEFAULT 0,
			closed INTEGER NOT NULL DEFAULT 0, open INTEGER NOT NULL DEFAULT 0,
			sources_ok INTEGER NOT NULL DEFAULT 0, sources_failed INTEGER NOT NULL DEFAULT 0,
			report_path TEXT DEFAULT '', created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		INSERT INTO report_runs (id, started_at, period_start, period_end) VALUES ('old', '2024-12-21 10:00:00', '2024-12-20 00:00:00', '2025-01-19 23:59:59');
	`)
	if err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	_ = legacy.Close()

	db, err := InitDB(path)
	if err != nil {
		t.Fatalf("InitDB on legacy db failed: %v", err)
	}
	defer db.Close()

	runs, err := ListRuns(db, 5)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "old" || runs[0].Notified {
		t.Fatalf("unexpected runs after migration: %+v", runs)
	}
	if err := MarkNotified(db, "old"); err != nil {
		t.Fatalf("MarkNotified failed: %v", err)
	}
}

func TestInitDBSetsBusyTimeout(t *testing.T) {
	db := newTestDB(t)

	var timeout int
	if err := db.QueryRow(`PRAGMA busy_timeout`).Scan(&timeout); err != nil {
		t.Fatalf("read busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Fatalf("busy_timeout = %d, want 5000", timeout)
	}
}

func TestInitDBIsReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		db, err := InitDB(path)
		if err != nil {
			t.Fatalf("InitDB #%d failed: %v", i+1, err)
		}
		_ = db.Close()
	}
}

func TestInsertAndListRuns(t *testing.T) {
	db := newTestDB(t)
	agg := testAggregate(t)
	base := time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC)

	older, olderDays := Snapshot(uuid.NewString(), "schedule", base, agg)
	older.SourcesOK = 2
	if err := InsertRun(db, older, olderDays); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	newer, newerDays := Snapshot(uuid.NewString(), "manual", base.Add(time.Hour), agg)
	newer.SourcesFailed = 1
	newer.ReportPath = "/reports/Statistics_20250109.md"
	if err := InsertRun(db, newer, newerDays); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	if err := MarkNotified(db, newer.ID); err != nil {
		t.Fatalf("MarkNotified failed: %v", err)
	}

	runs, err := ListRuns(db, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	got := runs[0]
	if got.ID != newer.ID || got.Trigger != "manual" || !got.Notified || got.SourcesFailed != 1 {
		t.Fatalf("unexpected newest run: %+v", got)
	}
	if got.Touches != 3 || got.Entities != 2 || got.Closed != 1 || got.Open != 1 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if !got.PeriodStart.Equal(agg.Window.Start) || !got.StartedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected times: start=%s started=%s", got.PeriodStart, got.StartedAt)
	}
	if runs[1].Notified {
		t.Fatalf("older run should not be marked notified")
	}

	limited, err := ListRuns(db, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("ListRuns(1) = %d runs, err=%v", len(limited), err)
	}
}

func TestGetRunDays(t *testing.T) {
	db := newTestDB(t)
	run, days := Snapshot("run-1", "manual", time.Now().UTC(), testAggregate(t))
	if err := InsertRun(db, run, days); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	got, err := GetRunDays(db, "run-1")
	if err != nil {
		t.Fatalf("GetRunDays failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %d", len(got))
	}
	if got[0].Day != "2025-01-05" || got[1].Day != "2025-01-09" {
		t.Fatalf("unexpected day order: %+v", got)
	}
	d9 := got[1]
	if d9.Closed != 1 || d9.Repeats != 1 || d9.LateClosures != 1 || d9.Open != 1 {
		t.Fatalf("unexpected day stats: %+v", d9)
	}

	if err := InsertRun(db, run, days); err == nil {
		t.Fatalf("expected duplicate run id to fail")
	}
}
