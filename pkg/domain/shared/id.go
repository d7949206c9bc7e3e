package shared

import (
	"fmt"
	"slices"
	"strconv"
)

// ID is the numeric identifier used by modules, menus and roles.
type ID int64

// IDFromString parses a decimal ID.
func IDFromString(s string) (ID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid id format %q", ErrValidation, s)
	}
	return ID(v), nil
}

// String returns the decimal representation of the ID.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IsZero returns true if the ID is unset.
func (id ID) IsZero() bool {
	return id == 0
}

// Int64 returns the raw value, handy for SQL arguments.
func (id ID) Int64() int64 {
	return int64(id)
}

// IDSet is an unordered set of IDs.
type IDSet map[ID]struct{}

// NewIDSet builds a set from the given ids.
func NewIDSet(ids ...ID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s IDSet) Add(id ID) {
	s[id] = struct{}{}
}

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []ID {
	out := make([]ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// UniqueIDs removes zero values and duplicates while keeping first-seen order.
func UniqueIDs(ids []ID) []ID {
	seen := make(IDSet, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() || seen.Has(id) {
			continue
		}
		seen.Add(id)
		out = append(out, id)
	}
	return out
}

// Int64s converts ids to a plain slice for SQL array parameters.
func Int64s(ids []ID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
