// Package results collects computed observables under user-declared keys.
package results

// Store is an insertion-ordered mapping from result key to value. Writing an
// existing key replaces the value and keeps the original position. A store
// belongs to exactly one run and needs no locking.
type Store struct {
	order  []string
	values map[string]any
}

func New() *Store {
	return &Store{values: make(map[string]any)}
}

// Put records value under key, overwriting a previous value.
func (s *Store) Put(key string, value any) {
	if _, exists := s.values[key]; !exists {
		s.order = append(s.order, key)
	}
	s.values[key] = value
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the result keys in insertion order.
func (s *Store) Keys() []string {
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

func (s *Store) Len() int {
	return len(s.order)
}

// Snapshot returns a copy of the current contents.
func (s *Store) Snapshot() map[string]any {
	snap := make(map[string]any, len(s.values))
	for k, v := range s.values {
		snap[k] = v
	}
	return snap
}
