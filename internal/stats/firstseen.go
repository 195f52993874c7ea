package stats

import "time"

// FirstSeen is an entity's earliest in-window touch.
type FirstSeen struct {
	At  time.Time
	Day DayKey
}

// FirstSeenIndex maps entity id to its first touch. It only ever moves
// entries earlier, so the result depends on the set of touches, not their order.
type FirstSeenIndex map[string]FirstSeen

// Observe records a touch, keeping the minimum timestamp.
func (idx FirstSeenIndex) Observe(entityID string, at time.Time, loc *time.Location) {
	if entityID == "" {
		return
	}
	if cur, ok := idx[entityID]; ok && !at.Before(cur.At) {
		return
	}
	idx[entityID] = FirstSeen{At: at, Day: DayOf(at, loc)}
}

// Merge folds other into idx, keeping the earlier touch per entity.
func (idx FirstSeenIndex) Merge(other FirstSeenIndex) {
	for id, fs := range other {
		if cur, ok := idx[id]; ok && !fs.At.Before(cur.At) {
			continue
		}
		idx[id] = fs
	}
}

// Day returns the first-seen day of an entity.
func (idx FirstSeenIndex) Day(entityID string) (DayKey, bool) {
	fs, ok := idx[entityID]
	return fs.Day, ok
}

func (idx FirstSeenIndex) clone() FirstSeenIndex {
	out := make(FirstSeenIndex, len(idx))
	for id, fs := range idx {
		out[id] = fs
	}
	return out
}
