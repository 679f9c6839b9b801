// Package session holds the process-wide authentication state and the
// signals used to keep it consistent across concurrent slotbook processes.
package session

import "sync"

// State is the shared auth flag pair read by command guards and mutated by
// the request gateway.
type State struct {
	mu            sync.RWMutex
	authenticated bool
	loading       bool
	nextID        int
	subs          map[int]func(authenticated bool)
}

// NewState returns a state that is loading and not authenticated.
func NewState() *State {
	return &State{loading: true, subs: make(map[int]func(bool))}
}

// IsAuthenticated reports whether the last auth decision was positive.
func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// IsLoading reports whether no auth decision has been made yet.
func (s *State) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetAuthenticated records an auth decision and ends the loading phase.
// Subscribers are notified only when the flag changes.
func (s *State) SetAuthenticated(v bool) {
	s.mu.Lock()
	changed := s.authenticated != v || s.loading
	s.authenticated = v
	s.loading = false
	var subs []func(bool)
	if changed {
		subs = make([]func(bool), 0, len(s.subs))
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

// Subscribe registers fn for auth flag changes. The returned func removes it.
func (s *State) Subscribe(fn func(authenticated bool)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
