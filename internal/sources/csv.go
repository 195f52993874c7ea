package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"fiksareport/internal/stats"
)

// CSVSource reads an exported operator sheet.
type CSVSource struct {
	id       string
	operator string
	path     string
	columns  stats.ColumnMap
	// Comma defaults to ','.
	Comma rune
}

func NewCSVSource(id, operator, path string, columns stats.ColumnMap) *CSVSource {
	if columns == (stats.ColumnMap{}) {
		columns = stats.SheetColumns
	}
	return &CSVSource{id: id, operator: operator, path: path, columns: columns}
}

func (s *CSVSource) ID() string               { return s.id }
func (s *CSVSource) Operator() string         { return s.operator }
func (s *CSVSource) Columns() stats.ColumnMap { return s.columns }

func (s *CSVSource) Rows(ctx context.Context) ([]stats.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return parseCSV(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), s.Comma)
}

func parseCSV(data []byte, comma rune) ([]stats.Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	if comma != 0 {
		r.Comma = comma
	}

	var rows []stats.Row
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		row := make(stats.Row, len(record))
		for i, cell := range record {
			row[i] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}
