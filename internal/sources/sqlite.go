package sources

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"fiksareport/internal/stats"
)

// OpenSQLite opens an operator database read-only.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	return db, nil
}

// SQLiteSource reads one operator table from a SQLite database.
type SQLiteSource struct {
	id       string
	operator string
	db       *sql.DB
	table    string
	columns  SQLColumns
}

func NewSQLiteSource(id, operator string, db *sql.DB, table string, columns SQLColumns) *SQLiteSource {
	return &SQLiteSource{id: id, operator: operator, db: db, table: table, columns: columns.orDefault()}
}

func (s *SQLiteSource) ID() string               { return s.id }
func (s *SQLiteSource) Operator() string         { return s.operator }
func (s *SQLiteSource) Columns() stats.ColumnMap { return stats.CompactColumns }

func (s *SQLiteSource) Rows(ctx context.Context) ([]stats.Row, error) {
	query := selectQuery(quoteSQLite, s.table, s.columns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []stats.Row
	for rows.Next() {
		var entity, status, operator, ts any
		if err := rows.Scan(&entity, &status, &operator, &ts); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		out = append(out, stats.Row{entity, status, operator, ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.table, err)
	}
	return out, nil
}

func quoteSQLite(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// selectQuery builds the four-column select for a table; quote escapes identifiers.
// The timestamp comes back as text: both drivers decode zone-less DATETIME and
// timestamp columns as UTC, while the normalizer reads zone-less text in the
// configured location.
func selectQuery(quote func(string) string, table string, cols SQLColumns) string {
	fields := cols.list()
	for i, f := range fields {
		fields[i] = quote(f)
	}
	fields[3] = "CAST(" + fields[3] + " AS TEXT)"
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(fields, ", "), quote(table))
}
