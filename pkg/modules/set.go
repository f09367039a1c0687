// Package modules maps changed repository paths onto addon module names and
// combines them with explicit include and exclude lists.
package modules

import (
	"maps"
	"slices"
)

// Set is an unordered collection of module names.
type Set map[string]struct{}

// NewSet builds a set from names. Empty names are ignored.
func NewSet(names ...string) Set {
	set := make(Set, len(names))

	for _, name := range names {
		set.Add(name)
	}

	return set
}

// Add inserts name unless it is empty.
func (s Set) Add(name string) {
	if name != "" {
		s[name] = struct{}{}
	}
}

// Has reports membership by exact string equality.
func (s Set) Has(name string) bool {
	_, ok := s[name]

	return ok
}

// Len returns the number of names.
func (s Set) Len() int { return len(s) }

// Union returns a new set with the names of s and other.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	maps.Copy(out, s)
	maps.Copy(out, other)

	return out
}

// Difference returns a new set with the names of s that are not in other.
func (s Set) Difference(other Set) Set {
	out := make(Set, len(s))

	for name := range s {
		if !other.Has(name) {
			out[name] = struct{}{}
		}
	}

	return out
}

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// Effective computes (changed ∪ include) − exclude.
func Effective(changed, include, exclude Set) Set {
	return changed.Union(include).Difference(exclude)
}
