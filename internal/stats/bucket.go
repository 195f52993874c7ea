package stats

import (
	"sort"
	"time"
)

// Bucket accumulates one axis cell: the total, a day, an operator, an
// operator on a day, or a source.
//
// Invariants after derive: Entities = Closed + Open (disjoint), Closed is the
// disjoint union of ClosedByKind, LateClosures is a subset of Closed and Repeats.
type Bucket struct {
	Touches      int
	Entities     EntitySet
	Closed       EntitySet
	Open         EntitySet
	ClosedByKind map[string]EntitySet
	// Repeats holds entities whose first-seen day differs from the bucket day.
	// Only day-keyed buckets fill it.
	Repeats EntitySet
	// LateClosures are repeats closed in this bucket.
	LateClosures EntitySet
	// Stamps keeps touch times for operator buckets (work-time estimation).
	Stamps []time.Time

	closedAt map[string]closeMark
}

// closeMark is the closing touch that decides an entity's kind in a bucket.
type closeMark struct {
	at    time.Time
	kind  string
	index int
}

// wins reports whether m should replace cur: the later touch wins, equal
// times resolve to the earlier taxonomy label.
func (m closeMark) wins(cur closeMark) bool {
	if !m.at.Equal(cur.at) {
		return m.at.After(cur.at)
	}
	return m.index < cur.index
}

func newBucket() *Bucket {
	return &Bucket{
		Entities:     EntitySet{},
		Closed:       EntitySet{},
		Open:         EntitySet{},
		ClosedByKind: map[string]EntitySet{},
		Repeats:      EntitySet{},
		LateClosures: EntitySet{},
		closedAt:     map[string]closeMark{},
	}
}

func (b *Bucket) touch(r Record, c Classification, keepStamp bool) {
	b.Touches++
	b.Entities.Add(r.EntityID)
	if keepStamp {
		b.Stamps = append(b.Stamps, r.Timestamp)
	}
	if !c.Closed {
		return
	}
	b.mark(r.EntityID, closeMark{at: r.Timestamp, kind: c.Kind, index: c.Index})
}

func (b *Bucket) mark(id string, m closeMark) {
	if cur, ok := b.closedAt[id]; ok && !m.wins(cur) {
		return
	}
	b.closedAt[id] = m
}

// absorb adds other's raw observations; derived sets are rebuilt by derive.
func (b *Bucket) absorb(other *Bucket) {
	if other == nil {
		return
	}
	b.Touches += other.Touches
	b.Entities.Union(other.Entities)
	b.Stamps = append(b.Stamps, other.Stamps...)
	for id, m := range other.closedAt {
		b.mark(id, m)
	}
}

// derive rebuilds Closed, ClosedByKind, Open and, for day buckets, Repeats and
// LateClosures. day is empty for buckets that are not keyed by a day.
func (b *Bucket) derive(labels []string, day DayKey, first FirstSeenIndex) {
	b.Closed = make(EntitySet, len(b.closedAt))
	b.ClosedByKind = make(map[string]EntitySet, len(labels))
	for _, label := range labels {
		b.ClosedByKind[label] = EntitySet{}
	}
	for id, m := range b.closedAt {
		b.Closed.Add(id)
		set, ok := b.ClosedByKind[m.kind]
		if !ok {
			set = EntitySet{}
			b.ClosedByKind[m.kind] = set
		}
		set.Add(id)
	}

	b.Open = make(EntitySet, len(b.Entities))
	for id := range b.Entities {
		if !b.Closed.Has(id) {
			b.Open.Add(id)
		}
	}

	b.Repeats = EntitySet{}
	b.LateClosures = EntitySet{}
	if day != "" {
		for id := range b.Entities {
			firstDay, ok := first.Day(id)
			if !ok || firstDay == day {
				continue
			}
			b.Repeats.Add(id)
			if b.Closed.Has(id) {
				b.LateClosures.Add(id)
			}
		}
	}

	sort.Slice(b.Stamps, func(i, j int) bool { return b.Stamps[i].Before(b.Stamps[j]) })
}

// ClosedKind returns the label an entity was closed under in this bucket.
func (b *Bucket) ClosedKind(entityID string) (string, bool) {
	m, ok := b.closedAt[entityID]
	return m.kind, ok
}

// KindCount returns how many entities closed under label.
func (b *Bucket) KindCount(label string) int {
	return b.ClosedByKind[label].Len()
}
