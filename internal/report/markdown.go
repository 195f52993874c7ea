package report

import (
	"fmt"
	"strings"
	"time"

	"fiksareport/internal/stats"
)

// RenderMarkdown renders the full statistics report for one aggregate.
func RenderMarkdown(agg *stats.Aggregate, meta Meta) string {
	loc := agg.Location
	var buf strings.Builder

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = "Статистика фиксаций"
	}
	buf.WriteString("# " + title + "\n\n")
	buf.WriteString(fmt.Sprintf("Период: %s\n", displayWindow(agg.Window, loc)))
	if !meta.Generated.IsZero() {
		t := meta.Generated
		if loc != nil {
			t = t.In(loc)
		}
		buf.WriteString(fmt.Sprintf("Обновлено: %s\n", t.Format("02.01.2006 15:04")))
	}
	if len(meta.Sources) > 0 {
		buf.WriteString(fmt.Sprintf("Источники: %d из %d (%s)\n",
			len(meta.Sources)-len(meta.Failed), len(meta.Sources), strings.Join(meta.Sources, ", ")))
	}
	if len(meta.Failed) > 0 {
		buf.WriteString(fmt.Sprintf("\n> Недоступные источники: %s\n", strings.Join(meta.Failed, ", ")))
	}
	buf.WriteString("\n")

	writeTotals(&buf, agg)
	writeKinds(&buf, agg)
	writeDays(&buf, agg)
	writeSources(&buf, agg)
	writeOperators(&buf, agg)
	writeOperatorDays(&buf, agg, meta.Generated)
	writeEntityLists(&buf, agg)

	return strings.TrimRight(buf.String(), "\n") + "\n"
}

func writeTotals(buf *strings.Builder, agg *stats.Aggregate) {
	total := agg.Total
	repeats := 0
	for _, day := range agg.ByDay {
		repeats += day.Repeats.Len()
	}
	buf.WriteString("## Итого\n\n")
	t := newTable(buf, "Показатель", "Значение")
	t.row("Фиксаций", itoa(total.Touches))
	t.row("Уникальных карт", itoa(total.Entities.Len()))
	t.row("Открытых", itoa(total.Open.Len()))
	t.row("Закрытых", itoa(total.Closed.Len()))
	t.row("Открытые + закрытые", itoa(total.Open.Len()+total.Closed.Len()))
	t.row("Повторных по дням", itoa(repeats))
	buf.WriteString("\n")
}

func writeKinds(buf *strings.Builder, agg *stats.Aggregate) {
	buf.WriteString("## Закрытые по статусам\n\n")
	t := newTable(buf, "Статус", "Карт")
	for _, label := range agg.Labels {
		t.row(label, itoa(agg.Total.KindCount(label)))
	}
	buf.WriteString("\n")
}

func writeDays(buf *strings.Builder, agg *stats.Aggregate) {
	days := agg.Days()
	if len(days) == 0 {
		return
	}
	buf.WriteString("## По дням\n\n")
	headers := []string{"Дата", "Фиксаций", "Уникальных", "Открытых", "Закрытых (старых)"}
	headers = append(headers, agg.Labels...)
	headers = append(headers, "Повторных")
	t := newTable(buf, headers...)
	for _, d := range days {
		b := agg.ByDay[d]
		cells := []string{
			displayDay(d),
			itoa(b.Touches),
			itoa(b.Entities.Len()),
			itoa(b.Open.Len()),
			closedWithLate(b),
		}
		for _, label := range agg.Labels {
			cells = append(cells, itoa(b.KindCount(label)))
		}
		cells = append(cells, itoa(b.Repeats.Len()))
		t.row(cells...)
	}
	buf.WriteString("\n")
}

func closedWithLate(b *stats.Bucket) string {
	if late := b.LateClosures.Len(); late > 0 {
		return fmt.Sprintf("%d (%d)", b.Closed.Len(), late)
	}
	return itoa(b.Closed.Len())
}

func writeSources(buf *strings.Builder, agg *stats.Aggregate) {
	ids := agg.Sources()
	if len(ids) < 2 {
		return
	}
	buf.WriteString("## По источникам\n\n")
	t := newTable(buf, "Источник", "Фиксаций", "Уникальных", "Открытых", "Закрытых")
	for _, id := range ids {
		b := agg.BySource[id]
		t.row(id, itoa(b.Touches), itoa(b.Entities.Len()), itoa(b.Open.Len()), itoa(b.Closed.Len()))
	}
	buf.WriteString("\n")
}

func writeOperators(buf *strings.Builder, agg *stats.Aggregate) {
	ops := agg.Operators()
	if len(ops) == 0 {
		return
	}
	buf.WriteString("## По операторам\n\n")
	t := newTable(buf, "Оператор", "Фиксаций", "Уникальных", "Закрытых", "Работа", "Перерыв", "Средний день")
	for _, op := range ops {
		b := agg.ByOperator[op]
		wt := stats.OverallWorkTime(b.Stamps, agg.Location)
		t.row(op, itoa(b.Touches), itoa(b.Entities.Len()), itoa(b.Closed.Len()),
			FormatDuration(wt.Work), FormatDuration(wt.Break), FormatDuration(wt.AvgDay))
	}
	buf.WriteString("\n")
}

// writeOperatorDays projects the current day's work as of now.
func writeOperatorDays(buf *strings.Builder, agg *stats.Aggregate, now time.Time) {
	ops := agg.Operators()
	if len(ops) == 0 {
		return
	}
	buf.WriteString("## Операторы по дням\n\n")
	for _, op := range ops {
		buf.WriteString("### " + op + "\n\n")
		t := newTable(buf, "Дата", "Фиксаций", "Уникальных", "Закрытых", "Повторных", "Работа", "Перерыв", "Смена", "Прогноз")
		for _, d := range agg.OperatorDays(op) {
			b := agg.ByOperatorByDay[op][d]
			wt := stats.DayWorkTimeAt(b.Stamps, now, agg.Location)
			t.row(displayDay(d), itoa(b.Touches), itoa(b.Entities.Len()), itoa(b.Closed.Len()),
				itoa(b.Repeats.Len()), FormatDuration(wt.Work), FormatDuration(wt.Break), wt.Shift,
				formatForecast(wt.Forecast))
		}
		buf.WriteString("\n")
	}
}

func writeEntityLists(buf *strings.Builder, agg *stats.Aggregate) {
	if agg.Total.Entities.Len() == 0 {
		return
	}
	buf.WriteString("## Карты\n\n")
	writeDetails(buf, "Открытые", agg.Total.Open.Sorted())
	writeDetails(buf, "Закрытые", agg.Total.Closed.Sorted())
}

func writeDetails(buf *strings.Builder, summary string, ids []string) {
	buf.WriteString(fmt.Sprintf("<details><summary>%s (%d)</summary>\n\n", summary, len(ids)))
	if len(ids) > 0 {
		buf.WriteString(strings.Join(ids, ", ") + "\n\n")
	}
	buf.WriteString("</details>\n\n")
}
