package events

import (
	"sync"
	"time"
)

// CameraState tracks per-camera alert pacing and in-flight confirmations.
// Each camera has its own lock; there is no global lock across cameras.
type CameraState struct {
	mu                   sync.Mutex
	name                 string
	lastAlertAt          time.Time
	recentAccepts        []time.Time
	pendingConfirmations map[string]struct{}
}

// StateMap holds one CameraState per camera name.
type StateMap struct {
	mu     sync.Mutex
	states map[string]*CameraState
}

func NewStateMap() *StateMap {
	return &StateMap{states: make(map[string]*CameraState)}
}

// Get returns the state for a camera, creating it on first use.
func (m *StateMap) Get(camera string) *CameraState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[camera]
	if !ok {
		s = &CameraState{
			name:                 camera,
			pendingConfirmations: make(map[string]struct{}),
		}
		m.states[camera] = s
	}
	return s
}

// TryAccept enforces the cooldown: if the last accepted event is closer than
// cooldown, the event is rejected and the timestamp does not advance.
// Otherwise the timestamp advances atomically and the event is accepted.
func (s *CameraState) TryAccept(now time.Time, cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastAlertAt.IsZero() && now.Sub(s.lastAlertAt) < cooldown {
		return false
	}
	s.lastAlertAt = now
	return true
}

// RecordAccept remembers an accepted event for the in-memory recent window.
func (s *CameraState) RecordAccept(now time.Time, window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.recentAccepts[:0]
	for _, ts := range s.recentAccepts {
		if now.Sub(ts) <= window {
			kept = append(kept, ts)
		}
	}
	s.recentAccepts = append(kept, now)
}

// RecentCount returns how many events were accepted inside the window.
func (s *CameraState) RecentCount(now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ts := range s.recentAccepts {
		if now.Sub(ts) <= window {
			n++
		}
	}
	return n
}

// BeginConfirmation registers an in-flight confirmation for an event.
func (s *CameraState) BeginConfirmation(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingConfirmations[eventID] = struct{}{}
}

// EndConfirmation clears the in-flight confirmation marker.
func (s *CameraState) EndConfirmation(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingConfirmations, eventID)
}

// PendingConfirmations returns the number of confirmations in flight.
func (s *CameraState) PendingConfirmations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingConfirmations)
}
