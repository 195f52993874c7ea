package stats

// Merge unions per-source aggregates into one. Nil parts (sources that could
// not be read) are skipped. Touch counts add up, entity sets and first-seen
// indexes union, and the closed/open split, kinds and repeats are re-derived
// from the union so no stale open state survives a merge.
//
// Merge assumes entity ids do not collide across sources and that all parts
// share a taxonomy. The result does not depend on argument order.
func Merge(parts ...*Aggregate) *Aggregate {
	var out *Aggregate
	for _, p := range parts {
		if p == nil {
			continue
		}
		if out == nil {
			out = newAggregate(p.Window, p.Labels, p.Location)
		}
		out.Window = out.Window.span(p.Window)
		out.Labels = unionLabels(out.Labels, p.Labels)
		out.FirstSeen.Merge(p.FirstSeen)

		out.Total.absorb(p.Total)
		for d, b := range p.ByDay {
			out.dayBucket(d).absorb(b)
		}
		for op, b := range p.ByOperator {
			out.operatorBucket(op).absorb(b)
		}
		for op, days := range p.ByOperatorByDay {
			for d, b := range days {
				out.operatorDayBucket(op, d).absorb(b)
			}
		}
		for id, b := range p.BySource {
			out.sourceBucket(id).absorb(b)
		}
	}
	if out == nil {
		out = newAggregate(Window{}, nil, nil)
	}
	out.derive()
	return out
}

func unionLabels(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, l := range append(append([]string(nil), a...), b...) {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
