package selection

import (
	"slices"
	"strings"
)

// Set is the ids of the cart lines chosen for checkout, kept sorted and de-duplicated so two
// equal selections always persist to the same bytes.
type Set []string

// NewSet normalizes ids into a Set, dropping blanks.
func NewSet(ids ...string) Set {
	out := make(Set, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (s Set) Contains(id string) bool {
	_, found := slices.BinarySearch(s, id)
	return found
}

// Intersect keeps the members of s that also appear in ids.
func (s Set) Intersect(ids Set) Set {
	out := make(Set, 0, len(s))
	for _, id := range s {
		if ids.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// Toggle returns a copy of s with id flipped.
func (s Set) Toggle(id string) Set {
	if s.Contains(id) {
		return s.Without(id)
	}
	return NewSet(append(slices.Clone(s), id)...)
}

func (s Set) Without(id string) Set {
	out := make(Set, 0, len(s))
	for _, member := range s {
		if member != id {
			out = append(out, member)
		}
	}
	return out
}
