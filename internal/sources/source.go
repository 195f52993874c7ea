// Package sources reads operator tables and turns them into engine batches.
package sources

import (
	"bytes"
	"context"
	"strings"

	"fiksareport/internal/stats"
)

// Source is one operator table. Rows returns the raw table; the loader owns
// retries, normalization and windowing.
type Source interface {
	ID() string
	// Operator is used for rows whose operator cell is blank.
	Operator() string
	Columns() stats.ColumnMap
	Rows(ctx context.Context) ([]stats.Row, error)
}

// SQLColumns names the columns a SQL source selects. Rows come back in
// stats.CompactColumns order.
type SQLColumns struct {
	Entity    string
	Status    string
	Operator  string
	Timestamp string
}

var DefaultSQLColumns = SQLColumns{Entity: "card_id", Status: "status", Operator: "operator", Timestamp: "fixed_at"}

func (c SQLColumns) orDefault() SQLColumns {
	if c == (SQLColumns{}) {
		return DefaultSQLColumns
	}
	return c
}

func (c SQLColumns) list() []string {
	return []string{c.Entity, c.Status, c.Operator, c.Timestamp}
}

// fillOperator writes operator into blank operator cells, padding short rows.
func fillOperator(rows []stats.Row, cols stats.ColumnMap, operator string) {
	if operator == "" {
		return
	}
	for i, row := range rows {
		if len(row) <= cols.Operator {
			padded := make(stats.Row, cols.Operator+1)
			copy(padded, row)
			row = padded
			rows[i] = row
		}
		if blank(row[cols.Operator]) {
			row[cols.Operator] = operator
		}
	}
}

func blank(v any) bool {
	switch c := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(c) == ""
	case []byte:
		return len(bytes.TrimSpace(c)) == 0
	}
	return false
}
