package report

import (
	"sort"
	"strings"

	"fiksareport/internal/stats"
)

const dayTotalLabel = "ИТОГО за день"

// DailyRow is one line of the per-day operator summary.
type DailyRow struct {
	Day      stats.DayKey
	Operator string // dayTotalLabel on the per-day total row
	Total    bool
	Touches  int
	Unique   int
	Closed   int
	Open     int
	Repeats  int
}

func dailyRow(day stats.DayKey, operator string, b *stats.Bucket) DailyRow {
	return DailyRow{
		Day:      day,
		Operator: operator,
		Touches:  b.Touches,
		Unique:   b.Entities.Len(),
		Closed:   b.Closed.Len(),
		Open:     b.Open.Len(),
		Repeats:  b.Repeats.Len(),
	}
}

// DailySummary lists days newest first. Within a day operators are ordered by
// closed cards, then name, and a total row follows. Total rows come from the
// day bucket, so a card touched by two operators is counted once.
func DailySummary(agg *stats.Aggregate) []DailyRow {
	days := agg.Days()
	sort.Slice(days, func(i, j int) bool { return days[i] > days[j] })

	var rows []DailyRow
	for _, d := range days {
		var ops []DailyRow
		for op, byDay := range agg.ByOperatorByDay {
			if b, ok := byDay[d]; ok {
				ops = append(ops, dailyRow(d, op, b))
			}
		}
		sort.Slice(ops, func(i, j int) bool {
			if ops[i].Closed != ops[j].Closed {
				return ops[i].Closed > ops[j].Closed
			}
			return ops[i].Operator < ops[j].Operator
		})
		rows = append(rows, ops...)

		total := dailyRow(d, dayTotalLabel, agg.ByDay[d])
		total.Total = true
		rows = append(rows, total)
	}
	return rows
}

// RenderDailySummary renders DailySummary rows as a Markdown table.
func RenderDailySummary(rows []DailyRow) string {
	var buf strings.Builder
	buf.WriteString("## Сводка по дням\n\n")
	if len(rows) == 0 {
		buf.WriteString("Нет фиксаций за период.\n")
		return buf.String()
	}
	t := newTable(&buf, "Дата", "ФИО", "Фиксаций", "Уникальных", "Закрыто", "Открыто", "Повторных")
	for _, r := range rows {
		name := r.Operator
		if r.Total {
			name = "**" + name + "**"
		}
		t.row(displayDay(r.Day), name, itoa(r.Touches), itoa(r.Unique), itoa(r.Closed), itoa(r.Open), itoa(r.Repeats))
	}
	return buf.String()
}
