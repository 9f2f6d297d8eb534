package models

import (
	"encoding/json"
	"sort"
)

// CharSet is an unordered set of characters (kanji or kana)
type CharSet map[string]struct{}

// NewCharSet builds a set from the given items, dropping duplicates
func NewCharSet(items ...string) CharSet {
	s := make(CharSet, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add inserts item and reports whether the set changed
func (s CharSet) Add(item string) bool {
	if _, ok := s[item]; ok {
		return false
	}
	s[item] = struct{}{}
	return true
}

// Remove deletes item and reports whether the set changed
func (s CharSet) Remove(item string) bool {
	if _, ok := s[item]; !ok {
		return false
	}
	delete(s, item)
	return true
}

// Has reports membership
func (s CharSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Len returns the number of members
func (s CharSet) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order
func (s CharSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy. A nil set clones to an empty one.
func (s CharSet) Clone() CharSet {
	out := make(CharSet, len(s))
	for item := range s {
		out[item] = struct{}{}
	}
	return out
}

// Union returns a new set holding the members of both sets
func (s CharSet) Union(other CharSet) CharSet {
	out := s.Clone()
	for item := range other {
		out[item] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same members
func (s CharSet) Equal(other CharSet) bool {
	if len(s) != len(other) {
		return false
	}
	for item := range s {
		if !other.Has(item) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a sorted array
func (s CharSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array, collapsing duplicates
func (s *CharSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewCharSet(items...)
	return nil
}
