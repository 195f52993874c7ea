package stats

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Row is one raw table row as delivered by an input adapter.
type Row []any

// ColumnMap holds zero-based cell indexes for the fields the engine reads.
type ColumnMap struct {
	Entity    int `yaml:"entity"`
	Status    int `yaml:"status"`
	Operator  int `yaml:"operator"`
	Timestamp int `yaml:"timestamp"`
}

// SheetColumns is the operator sheet layout: B card id, E status, H operator, I fixed at.
var SheetColumns = ColumnMap{Entity: 1, Status: 4, Operator: 7, Timestamp: 8}

// CompactColumns is the layout produced by the SQL adapters.
var CompactColumns = ColumnMap{Entity: 0, Status: 1, Operator: 2, Timestamp: 3}

func (c ColumnMap) width() int {
	w := c.Entity
	for _, idx := range []int{c.Status, c.Operator, c.Timestamp} {
		if idx > w {
			w = idx
		}
	}
	return w + 1
}

// Normalizer turns raw rows into Records inside a window. It is a pure value;
// the zero value reads the sheet layout in time.Local.
type Normalizer struct {
	Columns  ColumnMap
	Location *time.Location
	// Operators maps case-folded raw operator spellings to a canonical name.
	Operators map[string]string
}

func NewNormalizer(columns ColumnMap, loc *time.Location, aliases map[string]string) Normalizer {
	n := Normalizer{Columns: columns, Location: loc}
	if len(aliases) > 0 {
		n.Operators = make(map[string]string, len(aliases))
		for raw, canonical := range aliases {
			key := foldLabel(raw)
			canonical = strings.TrimSpace(canonical)
			if key == "" || canonical == "" {
				continue
			}
			n.Operators[key] = canonical
		}
	}
	return n
}

// Normalize keeps rows with a non-blank entity id and a parsable timestamp
// that falls inside w. Bad rows are dropped, never reported.
func (n Normalizer) Normalize(sourceID string, rows []Row, w Window) []Record {
	loc := n.Location
	if loc == nil {
		loc = time.Local
	}
	cols := n.Columns
	if cols == (ColumnMap{}) {
		cols = SheetColumns
	}
	width := cols.width()

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		if len(row) <= cols.Entity {
			continue
		}
		id := strings.TrimSpace(cellString(row[cols.Entity]))
		if id == "" {
			continue
		}
		if len(row) < width {
			padded := make(Row, width)
			copy(padded, row)
			row = padded
		}
		ts, ok := ParseTimestamp(row[cols.Timestamp], loc)
		if !ok || !w.Contains(ts) {
			continue
		}
		out = append(out, Record{
			EntityID:  id,
			Status:    strings.TrimSpace(cellString(row[cols.Status])),
			Timestamp: ts,
			Operator:  n.canonicalOperator(cellString(row[cols.Operator])),
			SourceID:  sourceID,
		})
	}
	return out
}

func (n Normalizer) canonicalOperator(raw string) string {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" || len(n.Operators) == 0 {
		return name
	}
	if canonical, ok := n.Operators[foldLabel(name)]; ok {
		return canonical
	}
	return name
}

// textLayouts are tried in order; day-first dotted dates are the sheet default.
var textLayouts = []string{
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// zonedLayouts carry their own offset: SQLite text written from a time.Time
// and PostgreSQL timestamptz cast to text.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
}

// ParseTimestamp accepts native time values and the textual encodings found in
// operator tables. Zone-less text is read in loc.
func ParseTimestamp(v any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	}

	s := strings.TrimSpace(cellString(v))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	for _, layout := range textLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func cellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case []byte:
		return string(c)
	case int:
		return strconv.Itoa(c)
	case int32:
		return strconv.FormatInt(int64(c), 10)
	case int64:
		return strconv.FormatInt(c, 10)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(c), 'f', -1, 32)
	case time.Time:
		return c.Format(time.RFC3339)
	case fmt.Stringer:
		return c.String()
	default:
		return fmt.Sprint(c)
	}
}

func foldLabel(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
