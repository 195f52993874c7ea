package stats

import (
	"sort"
	"time"
)

const (
	// Gaps up to workInterval between touches count as work.
	workInterval = 5 * time.Minute
	// Longer gaps up to maxBreak count as a break; anything beyond is off shift.
	maxBreak = (90 + 15) * time.Minute
)

const (
	ShiftMorning = "09:00-18:00"
	ShiftLate    = "11:00-20:00"

	morningEndHour = 18
	lateEndHour    = 20
)

// WorkTime is an activity estimate derived from touch timestamps.
type WorkTime struct {
	Work  time.Duration
	Break time.Duration
	Shift string
	Days  int
	// AvgDay is Work spread over Days, rounded to the minute.
	AvgDay   time.Duration
	Forecast Forecast
}

type ForecastState int

const (
	// ForecastNone: the day is not today, or there is no work to project.
	ForecastNone ForecastState = iota
	ForecastProjected
	// ForecastDayOver: the last touch is older than the longest break.
	ForecastDayOver
)

// Forecast projects today's work to the end of the shift.
type Forecast struct {
	State ForecastState
	Work  time.Duration
}

// DayWorkTime estimates one day's work from its touch times. Stamps need not
// be sorted.
func DayWorkTime(stamps []time.Time, loc *time.Location) WorkTime {
	return DayWorkTimeAt(stamps, time.Time{}, loc)
}

// DayWorkTimeAt is DayWorkTime as seen at now. When the last touch falls on
// now's day the time since it counts as ongoing activity and the day's work is
// projected to the end of the shift. A zero now disables both.
func DayWorkTimeAt(stamps []time.Time, now time.Time, loc *time.Location) WorkTime {
	if len(stamps) == 0 {
		return WorkTime{Shift: "-"}
	}
	if loc == nil {
		loc = time.Local
	}
	sorted := sortedStamps(stamps)
	first, last := sorted[0], sorted[len(sorted)-1]

	wt := WorkTime{Shift: shiftFor(first.In(loc).Hour()), Days: 1}
	for i := 0; i+1 < len(sorted); i++ {
		wt.addGap(sorted[i+1].Sub(sorted[i]))
	}

	if !now.IsZero() && DayOf(last, loc) == DayOf(now, loc) {
		if since := now.Sub(last); since > maxBreak {
			wt.Forecast.State = ForecastDayOver
		} else {
			if since > 0 {
				wt.addGap(since)
			}
			wt.Forecast = project(wt.Work, first, now, shiftEnd(first, loc))
		}
	}

	wt.Work = wt.Work.Round(time.Minute)
	wt.Break = wt.Break.Round(time.Minute)
	wt.AvgDay = wt.Work
	return wt
}

func (wt *WorkTime) addGap(gap time.Duration) {
	switch {
	case gap <= workInterval:
		wt.Work += gap
	case gap <= maxBreak:
		wt.Break += gap
	}
}

// project extrapolates the work rate since the first touch to the shift end.
// Past the shift end the projection is the work done so far.
func project(work time.Duration, first, now, end time.Time) Forecast {
	elapsed := now.Sub(first)
	if elapsed <= 0 || work <= 0 {
		return Forecast{}
	}
	span := end.Sub(first)
	if span < elapsed {
		span = elapsed
	}
	projected := time.Duration(float64(work) * float64(span) / float64(elapsed))
	return Forecast{State: ForecastProjected, Work: projected.Round(time.Minute)}
}

// OverallWorkTime groups stamps by day and sums the per-day estimates.
func OverallWorkTime(stamps []time.Time, loc *time.Location) WorkTime {
	if len(stamps) == 0 {
		return WorkTime{Shift: "-"}
	}
	if loc == nil {
		loc = time.Local
	}
	byDay := map[DayKey][]time.Time{}
	for _, t := range stamps {
		d := DayOf(t, loc)
		byDay[d] = append(byDay[d], t)
	}

	var out WorkTime
	for _, day := range byDay {
		wt := DayWorkTime(day, loc)
		out.Work += wt.Work
		out.Break += wt.Break
	}
	out.Days = len(byDay)
	out.AvgDay = (out.Work / time.Duration(out.Days)).Round(time.Minute)
	out.Shift = shiftFor(sortedStamps(stamps)[0].In(loc).Hour())
	return out
}

// shiftFor guesses the shift from the hour of the first touch.
func shiftFor(hour int) string {
	if (hour >= 10 && hour < 14) || (hour >= 18 && hour < 21) {
		return ShiftLate
	}
	return ShiftMorning
}

// shiftEnd is the end of the shift the first touch opened, on its own day.
func shiftEnd(first time.Time, loc *time.Location) time.Time {
	local := first.In(loc)
	hour := morningEndHour
	if shiftFor(local.Hour()) == ShiftLate {
		hour = lateEndHour
	}
	return time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
}

func sortedStamps(stamps []time.Time) []time.Time {
	out := append([]time.Time(nil), stamps...)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
