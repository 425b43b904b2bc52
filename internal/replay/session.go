package replay

import (
	"fmt"
	"sync"
)

// Session is the replay cursor over a loaded capture. The console and the
// health endpoint share it; all access goes through the mutex.
type Session struct {
	mu          sync.Mutex
	steps       []Step
	current     int
	hub         *Hub
	capturePath string
	startedAt   string
}

// NewSession wraps steps with a cursor starting at step zero.
func NewSession(steps []Step, hub *Hub, capturePath, startedAt string) *Session {
	return &Session{
		steps:       steps,
		hub:         hub,
		capturePath: capturePath,
		startedAt:   startedAt,
	}
}

// Len returns the number of steps.
func (s *Session) Len() int { return len(s.steps) }

// CapturePath returns the loaded capture file path.
func (s *Session) CapturePath() string { return s.capturePath }

// StartedAt returns the capture's recorded start time.
func (s *Session) StartedAt() string { return s.startedAt }

// Current returns the step under the cursor.
func (s *Session) Current() Step {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.steps[s.current]
}

// SetIndex moves the cursor. Out-of-range indices leave the cursor where
// it was and report the valid range. With broadcast set, the step's raw
// payload is pushed to every connected client.
func (s *Session) SetIndex(idx int, broadcast bool) (Step, error) {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.steps) {
		s.mu.Unlock()

		return Step{}, fmt.Errorf("index out of range (0-%d)", len(s.steps)-1)
	}
	s.current = idx
	step := s.steps[s.current]
	s.mu.Unlock()

	if broadcast {
		s.hub.Broadcast(step.Raw)
	}

	return step, nil
}

// Advance moves the cursor by delta and broadcasts the resulting step.
func (s *Session) Advance(delta int) (Step, error) {
	s.mu.Lock()
	target := s.current + delta
	s.mu.Unlock()

	return s.SetIndex(target, true)
}
