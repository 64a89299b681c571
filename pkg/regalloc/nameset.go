package regalloc

import (
	"sort"

	"github.com/raymyers/ralph-ra/pkg/abs"
)

// NameSet is a set of temporaries and hardware registers
type NameSet map[abs.Name]struct{}

// NewNameSet creates a set holding the given names
func NewNameSet(names ...abs.Name) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts a name
func (s NameSet) Add(n abs.Name) {
	s[n] = struct{}{}
}

// Remove deletes a name
func (s NameSet) Remove(n abs.Name) {
	delete(s, n)
}

// Contains reports membership
func (s NameSet) Contains(n abs.Name) bool {
	_, ok := s[n]
	return ok
}

// Union returns a new set with the members of both sets
func (s NameSet) Union(other NameSet) NameSet {
	u := make(NameSet, len(s)+len(other))
	for n := range s {
		u.Add(n)
	}
	for n := range other {
		u.Add(n)
	}
	return u
}

// Minus returns a new set with the members of s that are not in other
func (s NameSet) Minus(other NameSet) NameSet {
	d := make(NameSet, len(s))
	for n := range s {
		if !other.Contains(n) {
			d.Add(n)
		}
	}
	return d
}

// Equal reports whether both sets hold the same names
func (s NameSet) Equal(other NameSet) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if !other.Contains(n) {
			return false
		}
	}
	return true
}

// Copy returns an independent copy
func (s NameSet) Copy() NameSet {
	c := make(NameSet, len(s))
	for n := range s {
		c.Add(n)
	}
	return c
}

// Slice returns the members in a deterministic order: hardware registers
// by name, then temporaries by number
func (s NameSet) Slice() []abs.Name {
	names := make([]abs.Name, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sortNames(names)
	return names
}

func sortNames(names []abs.Name) {
	sort.Slice(names, func(i, j int) bool {
		a, b := names[i], names[j]
		ai, bi := a.TempIndex(), b.TempIndex()
		switch {
		case ai < 0 && bi < 0:
			return a < b
		case ai < 0 || bi < 0:
			return ai < 0
		default:
			return ai < bi
		}
	})
}
