package stats

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTaxonomy   = errors.New("closed-status taxonomy has no labels")
	ErrInvalidTaxonomy = errors.New("invalid closed-status taxonomy")
)

// DefaultClosedStatuses are the production terminal labels, in report order:
// negative, positive, closed after failed call, open card, medical staff referral.
var DefaultClosedStatuses = []string{
	"отрицательный",
	"положительный",
	"заявка закрыта (не удалось дозвониться)",
	"открыть карту",
	"тиббиёт ходими аризаси",
}

// Taxonomy is the ordered set of closed-status labels.
type Taxonomy struct {
	labels []string
	index  map[string]int
}

func NewTaxonomy(labels []string) (*Taxonomy, error) {
	if len(labels) == 0 {
		return nil, ErrEmptyTaxonomy
	}
	t := &Taxonomy{
		labels: make([]string, 0, len(labels)),
		index:  make(map[string]int, len(labels)),
	}
	for i, raw := range labels {
		key := foldLabel(raw)
		if key == "" {
			return nil, fmt.Errorf("%w: label %d is blank", ErrInvalidTaxonomy, i+1)
		}
		if prev, dup := t.index[key]; dup {
			return nil, fmt.Errorf("%w: label %q duplicates label %d", ErrInvalidTaxonomy, raw, prev+1)
		}
		t.index[key] = len(t.labels)
		t.labels = append(t.labels, raw)
	}
	return t, nil
}

// MustTaxonomy panics on a bad label list; for package-level defaults and tests.
func MustTaxonomy(labels []string) *Taxonomy {
	t, err := NewTaxonomy(labels)
	if err != nil {
		panic(err)
	}
	return t
}

// Labels returns a copy of the labels in configured order.
func (t *Taxonomy) Labels() []string {
	return append([]string(nil), t.labels...)
}

func (t *Taxonomy) Len() int { return len(t.labels) }

// Classification is the result of classifying one status value.
type Classification struct {
	Closed bool
	Kind   string // taxonomy label as configured; empty when open
	Index  int    // position in the taxonomy; -1 when open
}

// Open is the classification of every status outside the taxonomy.
var Open = Classification{Index: -1}

// Classify matches status exactly after trimming, ignoring case. Blank and
// unknown statuses are open.
func (t *Taxonomy) Classify(status string) Classification {
	key := foldLabel(status)
	if key == "" {
		return Open
	}
	idx, ok := t.index[key]
	if !ok {
		return Open
	}
	return Classification{Closed: true, Kind: t.labels[idx], Index: idx}
}
