package domain

import "time"

// State is the serializable slice of host application state that holds the
// current mode of a session, along with its undo/redo history.
type State struct {
	// SessionID identifies the owner of this state.
	SessionID string `json:"session_id"`

	// Mode is the current mode. It must name a leaf of the compiled tree.
	Mode Mode `json:"mode"`

	// Past holds previous modes, oldest first.
	Past []Mode `json:"past,omitempty"`

	// Future holds undone modes, the next redo target last.
	Future []Mode `json:"future,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates a clean state at the given mode.
func NewState(sessionID string, mode Mode) *State {
	return &State{
		SessionID: sessionID,
		Mode:      mode,
		UpdatedAt: time.Now().UTC(),
	}
}

// Snapshot returns a deep copy, so callers can mutate it freely.
func (s *State) Snapshot() *State {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Past = append([]Mode(nil), s.Past...)
	cp.Future = append([]Mode(nil), s.Future...)
	return &cp
}

// Push moves to next, recording the current mode in Past and clearing Future.
// A limit <= 0 keeps an unbounded history.
// Moving to the current mode is a no-op and records nothing.
func (s *State) Push(next Mode, limit int) {
	if next == s.Mode {
		return
	}
	s.Past = append(s.Past, s.Mode)
	if limit > 0 && len(s.Past) > limit {
		s.Past = append([]Mode(nil), s.Past[len(s.Past)-limit:]...)
	}
	s.Future = nil
	s.Mode = next
	s.UpdatedAt = time.Now().UTC()
}

// Undo steps back to the previous mode.
func (s *State) Undo() error {
	if len(s.Past) == 0 {
		return ErrNothingToUndo
	}
	prev := s.Past[len(s.Past)-1]
	s.Past = s.Past[:len(s.Past)-1]
	s.Future = append(s.Future, s.Mode)
	s.Mode = prev
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Redo re-applies the most recently undone mode.
func (s *State) Redo() error {
	if len(s.Future) == 0 {
		return ErrNothingToRedo
	}
	next := s.Future[len(s.Future)-1]
	s.Future = s.Future[:len(s.Future)-1]
	s.Past = append(s.Past, s.Mode)
	s.Mode = next
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// CanUndo reports whether Undo would succeed.
func (s *State) CanUndo() bool { return len(s.Past) > 0 }

// CanRedo reports whether Redo would succeed.
func (s *State) CanRedo() bool { return len(s.Future) > 0 }
