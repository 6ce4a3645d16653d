package domain

import "strings"

// IngredientSet is a deduplicated set of free-text ingredient names.
// Membership is case-sensitive. Insertion order is preserved so the UI
// renders a stable list, but order carries no meaning.
type IngredientSet struct {
	names []string
	seen  map[string]struct{}
}

// NewIngredientSet creates a set from the given names, dropping blanks
// and duplicates.
func NewIngredientSet(names ...string) *IngredientSet {
	s := &IngredientSet{seen: make(map[string]struct{})}
	s.Add(names...)
	return s
}

// ParseIngredients parses a comma-joined editing string back into a set.
func ParseIngredients(raw string) *IngredientSet {
	return NewIngredientSet(strings.Split(raw, ",")...)
}

// Add merges names into the set (union). Blank entries are ignored.
// Returns the number of names actually added.
func (s *IngredientSet) Add(names ...string) int {
	added := 0
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := s.seen[n]; ok {
			continue
		}
		s.seen[n] = struct{}{}
		s.names = append(s.names, n)
		added++
	}
	return added
}

// Contains reports set membership, case-sensitive.
func (s *IngredientSet) Contains(name string) bool {
	_, ok := s.seen[strings.TrimSpace(name)]
	return ok
}

// Len returns the number of ingredients.
func (s *IngredientSet) Len() int { return len(s.names) }

// Names returns a copy of the ingredient names in insertion order.
func (s *IngredientSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// String serializes the set for editing: comma-joined names.
func (s *IngredientSet) String() string {
	return strings.Join(s.names, ", ")
}

// Clone returns an independent copy of the set.
func (s *IngredientSet) Clone() *IngredientSet {
	return NewIngredientSet(s.names...)
}
