package stats

import (
	"sort"
	"time"
)

// Aggregate is the multi-axis result of one aggregation run.
type Aggregate struct {
	Window   Window
	Labels   []string // taxonomy labels in report order
	Location *time.Location

	Total           *Bucket
	ByDay           map[DayKey]*Bucket
	ByOperator      map[string]*Bucket
	ByOperatorByDay map[string]map[DayKey]*Bucket
	BySource        map[string]*Bucket

	FirstSeen FirstSeenIndex
}

func newAggregate(w Window, labels []string, loc *time.Location) *Aggregate {
	return &Aggregate{
		Window:          w,
		Labels:          append([]string(nil), labels...),
		Location:        loc,
		Total:           newBucket(),
		ByDay:           map[DayKey]*Bucket{},
		ByOperator:      map[string]*Bucket{},
		ByOperatorByDay: map[string]map[DayKey]*Bucket{},
		BySource:        map[string]*Bucket{},
		FirstSeen:       FirstSeenIndex{},
	}
}

// Days lists day keys ascending.
func (a *Aggregate) Days() []DayKey {
	out := make([]DayKey, 0, len(a.ByDay))
	for d := range a.ByDay {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Operators lists operator names ascending.
func (a *Aggregate) Operators() []string {
	return sortedKeys(a.ByOperator)
}

// Sources lists contributing source ids ascending.
func (a *Aggregate) Sources() []string {
	return sortedKeys(a.BySource)
}

// OperatorDays lists the days an operator worked, ascending.
func (a *Aggregate) OperatorDays(operator string) []DayKey {
	days := a.ByOperatorByDay[operator]
	out := make([]DayKey, 0, len(days))
	for d := range days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (a *Aggregate) dayBucket(d DayKey) *Bucket {
	b, ok := a.ByDay[d]
	if !ok {
		b = newBucket()
		a.ByDay[d] = b
	}
	return b
}

func (a *Aggregate) operatorBucket(op string) *Bucket {
	b, ok := a.ByOperator[op]
	if !ok {
		b = newBucket()
		a.ByOperator[op] = b
	}
	return b
}

func (a *Aggregate) operatorDayBucket(op string, d DayKey) *Bucket {
	days, ok := a.ByOperatorByDay[op]
	if !ok {
		days = map[DayKey]*Bucket{}
		a.ByOperatorByDay[op] = days
	}
	b, ok := days[d]
	if !ok {
		b = newBucket()
		days[d] = b
	}
	return b
}

func (a *Aggregate) sourceBucket(id string) *Bucket {
	b, ok := a.BySource[id]
	if !ok {
		b = newBucket()
		a.BySource[id] = b
	}
	return b
}

// derive finalizes every bucket against the aggregate's first-seen index.
func (a *Aggregate) derive() {
	a.Total.derive(a.Labels, "", a.FirstSeen)
	for d, b := range a.ByDay {
		b.derive(a.Labels, d, a.FirstSeen)
	}
	for _, b := range a.ByOperator {
		b.derive(a.Labels, "", a.FirstSeen)
	}
	for _, days := range a.ByOperatorByDay {
		for d, b := range days {
			b.derive(a.Labels, d, a.FirstSeen)
		}
	}
	for _, b := range a.BySource {
		b.derive(a.Labels, "", a.FirstSeen)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
