package training

import (
	"sort"
	"sync"
)

// Session records which labels finished training since the last reset.
type Session struct {
	mu       sync.RWMutex
	complete map[string]bool
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{complete: make(map[string]bool)}
}

// MarkComplete flags label as trained.
func (s *Session) MarkComplete(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complete[label] = true
}

// Complete reports whether label finished training.
func (s *Session) Complete(label string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.complete[label]
}

// Labels returns the completed labels in sorted order.
func (s *Session) Labels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	labels := make([]string, 0, len(s.complete))
	for l := range s.complete {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Reset forgets all completed labels.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complete = make(map[string]bool)
}
