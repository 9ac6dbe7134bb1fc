package cache

import "sync"

// StaleSet tracks accounts whose durable summary must not be served until
// a full recompute refreshes it. It lives alongside the fast tier and has
// the same process-local consistency scope: marks are as disposable as
// cache entries, and a restart simply forgets them.
type StaleSet struct {
	mu    sync.RWMutex
	marks map[string]struct{}
}

// NewStaleSet creates an empty stale-account set.
func NewStaleSet() *StaleSet {
	return &StaleSet{marks: make(map[string]struct{})}
}

// Mark flags an account as requiring a full recompute. Marking an already
// flagged account is a no-op, so repeated invalidations are safe.
func (s *StaleSet) Mark(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.marks[accountID] = struct{}{}
}

// Clear removes the flag after a recompute or purge.
func (s *StaleSet) Clear(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.marks, accountID)
}

// IsStale reports whether the account's durable record is awaiting a
// recompute.
func (s *StaleSet) IsStale(accountID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.marks[accountID]
	return ok
}
