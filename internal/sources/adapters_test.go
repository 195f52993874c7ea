package sources

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiksareport/internal/stats"
)

func TestCSVSourceReadsSheetExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aziza.csv")
	content := "\xef\xbb\xbf№,Карта,,,Статус,,,Оператор,Время\n" +
		"1,C100,,,положительный,,,Азиза,05.01.2025 09:30:00\n" +
		"2,\"C,101\",,,\"\"\"quoted\"\"\",,,,05.01.2025 09:31:00\n" +
		"3,C102\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	src := NewCSVSource("aziza", "Азиза", path, stats.ColumnMap{})
	assert.Equal(t, stats.SheetColumns, src.Columns())

	rows, err := src.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "№", rows[0][0])
	assert.Equal(t, "C,101", rows[2][1])
	assert.Equal(t, `"quoted"`, rows[2][4])
	assert.Len(t, rows[3], 2)

	n := stats.NewNormalizer(src.Columns(), time.UTC, nil)
	fillOperator(rows, src.Columns(), src.Operator())
	records := n.Normalize(src.ID(), rows, testWindow())
	require.Len(t, records, 2)
	assert.Equal(t, "Азиза", records[1].Operator)
}

func TestCSVSourceMissingFile(t *testing.T) {
	src := NewCSVSource("x", "", filepath.Join(t.TempDir(), "nope.csv"), stats.SheetColumns)
	_, err := src.Rows(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSQLiteSourceReadsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operators.db")
	rw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = rw.Exec(`
		CREATE TABLE "aziza log" (card_id INTEGER, status TEXT, operator TEXT, fixed_at TEXT);
		INSERT INTO "aziza log" VALUES (100, 'положительный', 'Aziza', '2025-01-05 09:30:00');
		INSERT INTO "aziza log" VALUES (101, NULL, NULL, '05.01.2025 10:00:00');
	`)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	src := NewSQLiteSource("aziza", "Aziza", db, "aziza log", SQLColumns{})
	result := LoadAll(context.Background(), []Source{src}, testOptions())
	require.NoError(t, result.Err())
	require.Len(t, result.Batches, 1)

	records := result.Batches[0].Records
	require.Len(t, records, 2)
	assert.Equal(t, "100", records[0].EntityID)
	assert.Equal(t, "положительный", records[0].Status)
	assert.Equal(t, "101", records[1].EntityID)
	assert.Equal(t, "Aziza", records[1].Operator)
	assert.Equal(t, 5, records[1].Timestamp.Day())
}

func TestSQLiteSourceReadsTypedColumnsInConfiguredZone(t *testing.T) {
	tashkent := time.FixedZone("UZT", 5*3600)
	path := filepath.Join(t.TempDir(), "operators.db")
	rw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = rw.Exec(`
		CREATE TABLE log (card_id TEXT, status TEXT, operator TEXT, fixed_at DATETIME);
		INSERT INTO log VALUES ('C1', 'положительный', 'Aziza', '2025-01-05 23:30:00');
		INSERT INTO log VALUES ('C2', NULL, 'Aziza', '2025-01-19 22:00:00');
	`)
	require.NoError(t, err)
	_, err = rw.Exec(`INSERT INTO log VALUES ('C3', NULL, 'Aziza', ?)`, time.Date(2025, 1, 7, 10, 0, 0, 0, tashkent))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	opts := testOptions()
	opts.Window = stats.PeriodWindow(time.Date(2025, 1, 10, 12, 0, 0, 0, tashkent), 0, 20, tashkent)
	opts.Normalizer = stats.NewNormalizer(stats.CompactColumns, tashkent, nil)
	result := LoadAll(context.Background(), []Source{NewSQLiteSource("aziza", "", db, "log", SQLColumns{})}, opts)
	require.NoError(t, result.Err())
	require.Len(t, result.Batches, 1)

	records := result.Batches[0].Records
	require.Len(t, records, 3, "the 19th at 22:00 local is inside the period")
	assert.Equal(t, stats.DayKey("2025-01-05"), stats.DayOf(records[0].Timestamp, tashkent))
	assert.True(t, time.Date(2025, 1, 5, 23, 30, 0, 0, tashkent).Equal(records[0].Timestamp))
	assert.Equal(t, stats.DayKey("2025-01-19"), stats.DayOf(records[1].Timestamp, tashkent))
	assert.True(t, time.Date(2025, 1, 7, 10, 0, 0, 0, tashkent).Equal(records[2].Timestamp))
}

func TestSQLiteSourceMissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	rw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = rw.Exec(`CREATE TABLE other (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = NewSQLiteSource("x", "", db, "missing", DefaultSQLColumns).Rows(context.Background())
	require.Error(t, err)
}

func TestSelectQueryQuotesIdentifiers(t *testing.T) {
	cols := SQLColumns{Entity: "card", Status: `st"atus`, Operator: "op", Timestamp: "ts"}
	assert.Equal(t,
		`SELECT "card", "st""atus", "op", CAST("ts" AS TEXT) FROM "log"`,
		selectQuery(quoteSQLite, "log", cols))
	assert.Equal(t,
		`SELECT "card_id", "status", "operator", CAST("fixed_at" AS TEXT) FROM "ops"."aziza"`,
		selectQuery(quotePostgres, "ops.aziza", DefaultSQLColumns))
}

func TestOpenPostgres(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "postgres://%zz", 0)
	require.Error(t, err)

	orig := newPool
	t.Cleanup(func() { newPool = orig })
	var gotMax int32
	newPool = func(_ context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
		gotMax = cfg.MaxConns
		return nil, errors.New("connection refused")
	}
	_, err = OpenPostgres(context.Background(), "postgres://user@localhost:5432/fiksa", 3)
	require.ErrorContains(t, err, "connection refused")
	assert.Equal(t, int32(3), gotMax)
}
