package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fiksareport/internal/stats"
)

// Meta carries the presentation details the engine does not know about.
type Meta struct {
	Title     string
	Generated time.Time
	Sources   []string // configured source ids, including ones that failed
	Failed    []string
}

// FormatDuration renders a duration as hours and minutes, e.g. "1ч 05м".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d.Round(time.Minute) / time.Minute)
	return fmt.Sprintf("%dч %02dм", minutes/60, minutes%60)
}

func formatForecast(f stats.Forecast) string {
	switch f.State {
	case stats.ForecastProjected:
		return FormatDuration(f.Work)
	case stats.ForecastDayOver:
		return "День завершён"
	default:
		return "-"
	}
}

// displayDay turns a day key into dd.MM.yyyy.
func displayDay(d stats.DayKey) string {
	t, err := d.Date(time.UTC)
	if err != nil {
		return string(d)
	}
	return t.Format("02.01.2006")
}

func displayWindow(w stats.Window, loc *time.Location) string {
	if w.IsZero() {
		return "-"
	}
	if loc == nil {
		loc = time.Local
	}
	return w.Start.In(loc).Format("02.01.2006") + " - " + w.End.In(loc).Format("02.01.2006")
}

// table accumulates a Markdown table.
type table struct {
	b    *strings.Builder
	cols int
}

func newTable(b *strings.Builder, headers ...string) *table {
	t := &table{b: b, cols: len(headers)}
	t.row(headers...)
	b.WriteString("|")
	for range headers {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	return t
}

func (t *table) row(cells ...string) {
	t.b.WriteString("|")
	for i := 0; i < t.cols; i++ {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		t.b.WriteString(" " + escapeCell(cell) + " |")
	}
	t.b.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

func itoa(n int) string { return strconv.Itoa(n) }
