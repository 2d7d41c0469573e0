package automaton

import (
	"slices"
	"strconv"
	"strings"
)

// StateID is an opaque state index scoped to one automaton.
type StateID int

// NoState is returned where a state is undefined.
const NoState StateID = -1

// StateSet is a frozen, sorted, duplicate-free set of states.
// Two sets with the same members have equal Keys.
type StateSet []StateID

// NewStateSet builds a canonical set from arbitrary IDs.
func NewStateSet(ids ...StateID) StateSet {
	out := slices.Clone(ids)
	slices.Sort(out)
	return StateSet(slices.Compact(out))
}

// Contains reports membership in O(log n).
func (s StateSet) Contains(id StateID) bool {
	_, ok := slices.BinarySearch(s, id)
	return ok
}

// Len returns the number of members.
func (s StateSet) Len() int { return len(s) }

// Key returns a canonical string usable as a map key.
func (s StateSet) Key() string {
	var sb strings.Builder
	for i, id := range s {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(id)))
	}
	return sb.String()
}

// Equal reports whether both sets have the same members.
func (s StateSet) Equal(other StateSet) bool {
	return slices.Equal(s, other)
}

// SubsetOf reports whether every member of s is in other.
func (s StateSet) SubsetOf(other StateSet) bool {
	for _, id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Union returns the members of either set.
func (s StateSet) Union(other StateSet) StateSet {
	out := make([]StateID, 0, len(s)+len(other))
	out = append(out, s...)
	out = append(out, other...)
	return NewStateSet(out...)
}

// Intersect returns the members of both sets.
func (s StateSet) Intersect(other StateSet) StateSet {
	out := make(StateSet, 0, min(len(s), len(other)))
	for _, id := range s {
		if other.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// Difference returns the members of s that are not in other.
func (s StateSet) Difference(other StateSet) StateSet {
	out := make(StateSet, 0, len(s))
	for _, id := range s {
		if !other.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

func (s StateSet) String() string {
	return "{" + s.Key() + "}"
}
