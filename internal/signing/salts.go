package signing

import "sync"

// SaltSet remembers every salt signed within one execution session.
type SaltSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

// NewSaltSet creates an empty salt set.
func NewSaltSet() *SaltSet {
	return &SaltSet{seen: make(map[string]struct{})}
}

// Add records salt and reports whether it was new.
func (s *SaltSet) Add(salt string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[salt]; ok {
		return false
	}
	s.seen[salt] = struct{}{}
	s.order = append(s.order, salt)
	return true
}

// List returns the salts in the order they were added.
func (s *SaltSet) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}
