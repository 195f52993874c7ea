package stats

import "time"

// Engine computes aggregates. It holds only configuration, performs no I/O and
// keeps nothing between calls, so one Engine may serve any number of runs.
type Engine struct {
	taxonomy *Taxonomy
	loc      *time.Location
}

func NewEngine(taxonomy *Taxonomy, loc *time.Location) (*Engine, error) {
	if taxonomy == nil || taxonomy.Len() == 0 {
		return nil, ErrEmptyTaxonomy
	}
	if loc == nil {
		loc = time.Local
	}
	return &Engine{taxonomy: taxonomy, loc: loc}, nil
}

func (e *Engine) Taxonomy() *Taxonomy      { return e.taxonomy }
func (e *Engine) Location() *time.Location { return e.loc }

// Batch is the normalized output of one source.
type Batch struct {
	SourceID string
	Records  []Record
}

// FirstSeen builds the first-occurrence index for in-window records. It must
// see the whole reporting period (all sources) before repeats are derived.
func (e *Engine) FirstSeen(records []Record, w Window) FirstSeenIndex {
	idx := make(FirstSeenIndex, len(records))
	for _, r := range records {
		if r.EntityID == "" || !w.Contains(r.Timestamp) {
			continue
		}
		idx.Observe(r.EntityID, r.Timestamp, e.loc)
	}
	return idx
}

// Empty returns the all-zero aggregate for w.
func (e *Engine) Empty(w Window) *Aggregate {
	a := newAggregate(w, e.taxonomy.Labels(), e.loc)
	a.derive()
	return a
}

// Aggregate builds every axis for the records inside w. first must cover the
// whole reporting period; when nil it is computed from records alone.
func (e *Engine) Aggregate(records []Record, w Window, first FirstSeenIndex) *Aggregate {
	if first == nil {
		first = e.FirstSeen(records, w)
	}
	a := newAggregate(w, e.taxonomy.Labels(), e.loc)
	a.FirstSeen = first.clone()

	for _, r := range records {
		if r.EntityID == "" || !w.Contains(r.Timestamp) {
			continue
		}
		// Records outside the supplied index still need a first-seen day.
		a.FirstSeen.Observe(r.EntityID, r.Timestamp, e.loc)

		c := e.taxonomy.Classify(r.Status)
		day := DayOf(r.Timestamp, e.loc)

		a.Total.touch(r, c, false)
		a.dayBucket(day).touch(r, c, false)
		if r.SourceID != "" {
			a.sourceBucket(r.SourceID).touch(r, c, false)
		}
		if r.Operator != "" {
			a.operatorBucket(r.Operator).touch(r, c, true)
			a.operatorDayBucket(r.Operator, day).touch(r, c, true)
		}
	}

	a.derive()
	return a
}

// Run is the full two-pass pipeline: the first-seen index over every batch,
// then one aggregate per batch, then the cross-source merge.
func (e *Engine) Run(batches []Batch, w Window) *Aggregate {
	if len(batches) == 0 {
		return e.Empty(w)
	}
	var all []Record
	for _, b := range batches {
		all = append(all, b.Records...)
	}
	first := e.FirstSeen(all, w)

	parts := make([]*Aggregate, 0, len(batches))
	for _, b := range batches {
		records := b.Records
		if b.SourceID != "" {
			records = withSource(records, b.SourceID)
		}
		parts = append(parts, e.Aggregate(records, w, first))
	}
	merged := Merge(parts...)
	merged.Window = w
	return merged
}

func withSource(records []Record, sourceID string) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		if r.SourceID == "" {
			r.SourceID = sourceID
		}
		out[i] = r
	}
	return out
}
