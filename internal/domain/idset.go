package domain

import (
	"github.com/goccy/go-json"
)

// IDSet is an insertion-ordered string set. Order is kept so the oldest
// entries can be rotated out when the set grows past its cap.
type IDSet struct {
	order []string
	index map[string]struct{}
}

// NewIDSet builds a set seeded with values, skipping duplicates.
func NewIDSet(values ...string) *IDSet {
	s := &IDSet{index: make(map[string]struct{}, len(values))}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add records value and reports whether it was new.
func (s *IDSet) Add(value string) bool {
	if s.index == nil {
		s.index = map[string]struct{}{}
	}
	if _, ok := s.index[value]; ok {
		return false
	}
	s.index[value] = struct{}{}
	s.order = append(s.order, value)
	return true
}

// Has reports membership.
func (s *IDSet) Has(value string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[value]
	return ok
}

// Len returns the number of members.
func (s *IDSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Values returns members oldest first.
func (s *IDSet) Values() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Trim drops the oldest members until at most max remain. max <= 0 disables trimming.
func (s *IDSet) Trim(max int) int {
	if s == nil || max <= 0 || len(s.order) <= max {
		return 0
	}
	drop := len(s.order) - max
	for _, v := range s.order[:drop] {
		delete(s.index, v)
	}
	s.order = append([]string(nil), s.order[drop:]...)
	return drop
}

// Clone returns an independent copy.
func (s *IDSet) Clone() *IDSet {
	if s == nil {
		return NewIDSet()
	}
	return NewIDSet(s.order...)
}

// MarshalJSON encodes the set as an array, oldest first.
func (s *IDSet) MarshalJSON() ([]byte, error) {
	values := s.Values()
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

// UnmarshalJSON decodes an array into the set.
func (s *IDSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = *NewIDSet(values...)
	return nil
}
