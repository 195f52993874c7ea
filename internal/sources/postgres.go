package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fiksareport/internal/stats"
)

var newPool = pgxpool.NewWithConfig

// OpenPostgres creates a pool for operator tables living in PostgreSQL.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		pcfg.MaxConns = maxConns
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	return pool, nil
}

// querier is the part of *pgxpool.Pool a source needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads one operator table; table may be schema-qualified.
type PostgresSource struct {
	id       string
	operator string
	db       querier
	table    string
	columns  SQLColumns
}

func NewPostgresSource(id, operator string, pool *pgxpool.Pool, table string, columns SQLColumns) *PostgresSource {
	return &PostgresSource{id: id, operator: operator, db: pool, table: table, columns: columns.orDefault()}
}

func (s *PostgresSource) ID() string               { return s.id }
func (s *PostgresSource) Operator() string         { return s.operator }
func (s *PostgresSource) Columns() stats.ColumnMap { return stats.CompactColumns }

func (s *PostgresSource) Rows(ctx context.Context) ([]stats.Row, error) {
	rows, err := s.db.Query(ctx, selectQuery(quotePostgres, s.table, s.columns))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []stats.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		out = append(out, stats.Row(vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.table, err)
	}
	return out, nil
}

func quotePostgres(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
