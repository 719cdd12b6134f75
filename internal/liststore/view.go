package liststore

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/normalize"
)

// Predicate selects items for the view.
type Predicate func(*normalize.Item) bool

// Comparator orders items in the view, like strings.Compare.
type Comparator func(a, b *normalize.Item) int

// SetFilter sets the criterion stored under key. All criteria must pass.
func (s *Store) SetFilter(key string, p Predicate) {
	s.update(func() {
		if p == nil {
			delete(s.filters, key)
			return
		}
		s.filters[key] = p
	})
}

// ClearFilter removes the criterion stored under key.
func (s *Store) ClearFilter(key string) {
	s.SetFilter(key, nil)
}

// ClearFilters removes every criterion.
func (s *Store) ClearFilters() {
	s.update(func() {
		s.filters = make(map[string]Predicate)
	})
}

// SetSort sets the view order. Nil keeps server order.
func (s *Store) SetSort(c Comparator) {
	s.update(func() {
		s.sort = c
	})
}

func (s *Store) update(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	fn()
	s.recomputeLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// recomputeLocked filters items, then stably sorts the survivors.
func (s *Store) recomputeLocked() {
	view := make([]*normalize.Item, 0, len(s.items))
	for _, item := range s.items {
		if s.matchLocked(item) {
			view = append(view, item)
		}
	}
	if s.sort != nil {
		slices.SortStableFunc(view, s.sort)
	}
	s.view = view
}

func (s *Store) matchLocked(item *normalize.Item) bool {
	for _, p := range s.filters {
		if !p(item) {
			return false
		}
	}
	return true
}

// All passes every item.
func All(*normalize.Item) bool { return true }

// FieldIn passes items whose field, trimmed and lower-cased, is one of
// values. An empty selection passes everything.
func FieldIn(field string, values ...string) Predicate {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = fold(v); v != "" {
			set[v] = struct{}{}
		}
	}
	if len(set) == 0 {
		return All
	}
	return func(item *normalize.Item) bool {
		_, ok := set[fold(item.String(field))]
		return ok
	}
}

// FieldEquals passes items whose field equals value, ignoring case and
// surrounding space. An empty value matches empty fields only.
func FieldEquals(field, value string) Predicate {
	value = fold(value)
	return func(item *normalize.Item) bool {
		return fold(item.String(field)) == value
	}
}

// Not negates p.
func Not(p Predicate) Predicate {
	return func(item *normalize.Item) bool { return !p(item) }
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NumericAsc orders by a numeric field, smallest first. Missing or
// non-numeric values count as zero.
func NumericAsc(field string) Comparator {
	return func(a, b *normalize.Item) int {
		return a.Decimal(field).Cmp(b.Decimal(field))
	}
}

// NumericDesc orders by a numeric field, largest first.
func NumericDesc(field string) Comparator {
	return Reverse(NumericAsc(field))
}

// TextAsc orders by a text field, case-insensitively.
func TextAsc(field string) Comparator {
	return func(a, b *normalize.Item) int {
		return strings.Compare(fold(a.String(field)), fold(b.String(field)))
	}
}

// TimeAsc orders by a date field, earliest first. Missing dates sort first.
func TimeAsc(field string) Comparator {
	return func(a, b *normalize.Item) int {
		ta, _ := a.Time(field)
		tb, _ := b.Time(field)
		return ta.Compare(tb)
	}
}

// Reverse inverts c.
func Reverse(c Comparator) Comparator {
	return func(a, b *normalize.Item) int { return c(b, a) }
}

// ByField picks a comparator from the values the field holds: dates,
// numbers (missing values as zero) or text.
func ByField(field string, descending bool) Comparator {
	c := func(a, b *normalize.Item) int {
		va, _ := a.Get(field)
		vb, _ := b.Get(field)
		switch {
		case isTime(va) || isTime(vb):
			return TimeAsc(field)(a, b)
		case isNumber(va) || isNumber(vb):
			return NumericAsc(field)(a, b)
		default:
			return TextAsc(field)(a, b)
		}
	}
	if descending {
		return Reverse(c)
	}
	return c
}

func isTime(v any) bool {
	_, ok := v.(time.Time)
	return ok
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int64, float64, json.Number, decimal.Decimal:
		return true
	default:
		return false
	}
}
