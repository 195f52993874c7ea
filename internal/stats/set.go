package stats

import "sort"

// EntitySet is a set of entity ids.
type EntitySet map[string]struct{}

func NewEntitySet(ids ...string) EntitySet {
	s := make(EntitySet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s EntitySet) Add(id string) { s[id] = struct{}{} }

func (s EntitySet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s EntitySet) Len() int { return len(s) }

// Union adds every member of other to s.
func (s EntitySet) Union(other EntitySet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Sorted lists members in ascending order.
func (s EntitySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
