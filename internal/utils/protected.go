package utils

import "strings"

// ProtectedSet holds the collection names that unconditionally block any
// rule from acting on an item. Matching is case-insensitive after trimming
// surrounding whitespace.
type ProtectedSet struct {
	names []string
}

// NewProtectedSet builds a protected set from configured collection names.
// Empty entries are dropped.
func NewProtectedSet(names []string) *ProtectedSet {
	set := &ProtectedSet{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" {
			set.names = append(set.names, name)
		}
	}
	return set
}

// Match checks whether any of the item's collections is protected.
// Returns (isProtected, matchedName).
func (p *ProtectedSet) Match(collections []string) (bool, string) {
	for _, collection := range collections {
		collection = strings.TrimSpace(collection)
		for _, name := range p.names {
			if strings.EqualFold(collection, name) {
				return true, name
			}
		}
	}
	return false, ""
}

// Names returns the configured protected collection names
func (p *ProtectedSet) Names() []string {
	return p.names
}
