package report

import (
	"fmt"
	"sort"
	"strings"

	"fiksareport/internal/stats"
)

// Digest renders the short chat message: period totals, closures by status and
// closed cards per operator for the day of meta.Generated.
func Digest(agg *stats.Aggregate, meta Meta) string {
	loc := agg.Location
	var buf strings.Builder

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = "Статистика фиксаций"
	}
	buf.WriteString(title + "\n")
	buf.WriteString("Период: " + displayWindow(agg.Window, loc) + "\n\n")

	total := agg.Total
	buf.WriteString(fmt.Sprintf("Фиксаций: %d | Уникальных: %d | Закрыто: %d | Открыто: %d\n",
		total.Touches, total.Entities.Len(), total.Closed.Len(), total.Open.Len()))

	var kinds []string
	for _, label := range agg.Labels {
		if n := total.KindCount(label); n > 0 {
			kinds = append(kinds, fmt.Sprintf("%s: %d", label, n))
		}
	}
	if len(kinds) > 0 {
		buf.WriteString("По статусам: " + strings.Join(kinds, "; ") + "\n")
	}

	if !meta.Generated.IsZero() {
		day := stats.DayOf(meta.Generated, loc)
		buf.WriteString(fmt.Sprintf("\nЗакрыто за %s:\n", displayDay(day)))
		type opClosed struct {
			name   string
			closed int
		}
		var ops []opClosed
		for op, byDay := range agg.ByOperatorByDay {
			if b, ok := byDay[day]; ok && b.Closed.Len() > 0 {
				ops = append(ops, opClosed{op, b.Closed.Len()})
			}
		}
		sort.Slice(ops, func(i, j int) bool {
			if ops[i].closed != ops[j].closed {
				return ops[i].closed > ops[j].closed
			}
			return ops[i].name < ops[j].name
		})
		for _, o := range ops {
			buf.WriteString(fmt.Sprintf("%s: %d\n", o.name, o.closed))
		}
		dayClosed := 0
		if b, ok := agg.ByDay[day]; ok {
			dayClosed = b.Closed.Len()
		}
		buf.WriteString(fmt.Sprintf("ИТОГО: %d\n", dayClosed))
	}

	if len(meta.Failed) > 0 {
		buf.WriteString("\nНедоступные источники: " + strings.Join(meta.Failed, ", ") + "\n")
	}
	return strings.TrimRight(buf.String(), "\n")
}
