package stats

import (
	"fmt"
	"time"
)

// Record is one touch on one entity, already validated by the Normalizer.
type Record struct {
	EntityID  string
	Status    string
	Timestamp time.Time
	Operator  string // may be blank; blank records skip the operator axes
	SourceID  string
}

// DayKey identifies a calendar day in the engine location, formatted yyyy-MM-dd.
type DayKey string

const dayKeyLayout = "2006-01-02"

func DayOf(t time.Time, loc *time.Location) DayKey {
	if loc == nil {
		loc = time.Local
	}
	return DayKey(t.In(loc).Format(dayKeyLayout))
}

// Date returns midnight of the day in loc.
func (d DayKey) Date(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(dayKeyLayout, string(d), loc)
}

// Window is an inclusive time range: Start <= t <= End.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

func (w Window) String() string {
	return fmt.Sprintf("%s - %s", w.Start.Format("02.01.2006 15:04:05"), w.End.Format("02.01.2006 15:04:05"))
}

// span returns the smallest window covering both.
func (w Window) span(other Window) Window {
	if w.IsZero() {
		return other
	}
	if other.IsZero() {
		return w
	}
	out := w
	if other.Start.Before(out.Start) {
		out.Start = other.Start
	}
	if other.End.After(out.End) {
		out.End = other.End
	}
	return out
}

// DefaultPeriodStartDay is the day of month a reporting period begins on.
const DefaultPeriodStartDay = 20

// PeriodWindow returns the reporting period containing ref, shifted by offset
// whole periods. A period runs from startDay 00:00 of one month up to the last
// nanosecond before startDay 00:00 of the next month.
func PeriodWindow(ref time.Time, offset, startDay int, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	if startDay < 1 || startDay > 28 {
		startDay = DefaultPeriodStartDay
	}
	ref = ref.In(loc)
	year, month := ref.Year(), ref.Month()
	if ref.Day() < startDay {
		month--
	}
	// time.Date normalizes month overflow in both directions.
	start := time.Date(year, month+time.Month(offset), startDay, 0, 0, 0, 0, loc)
	next := time.Date(start.Year(), start.Month()+1, startDay, 0, 0, 0, 0, loc)
	return Window{Start: start, End: next.Add(-time.Nanosecond)}
}

// DayWindow covers a single calendar day.
func DayWindow(day time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	day = day.In(loc)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1).Add(-time.Nanosecond)}
}
