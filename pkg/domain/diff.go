package domain

// StateDiff represents the changes between two states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	// Mode is set when the current mode changed.
	Mode *Mode `json:"mode,omitempty"`

	// From is the mode before the change, set together with Mode.
	From *Mode `json:"from,omitempty"`

	// Past describes how the undo stack moved.
	Past *HistoryDelta `json:"past,omitempty"`

	// CanUndo / CanRedo are set when availability flipped.
	CanUndo *bool `json:"can_undo,omitempty"`
	CanRedo *bool `json:"can_redo,omitempty"`
}

// HistoryDelta represents changes to the undo stack.
// Appended items were pushed; Removed counts items popped or trimmed.
type HistoryDelta struct {
	Appended []Mode `json:"appended,omitempty"`
	Removed  int    `json:"removed,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		SessionID: newState.SessionID,
	}

	if oldState == nil || oldState.Mode != newState.Mode {
		mode := newState.Mode
		diff.Mode = &mode
		if oldState != nil {
			from := oldState.Mode
			diff.From = &from
		}
	}

	diff.Past = diffPast(oldState, newState)

	newUndo, newRedo := newState.CanUndo(), newState.CanRedo()
	if oldState == nil || oldState.CanUndo() != newUndo {
		diff.CanUndo = &newUndo
	}
	if oldState == nil || oldState.CanRedo() != newRedo {
		diff.CanRedo = &newRedo
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// diffPast compares undo stacks by their longest common prefix.
func diffPast(old, new *State) *HistoryDelta {
	if old == nil {
		if len(new.Past) == 0 {
			return nil
		}
		return &HistoryDelta{Appended: append([]Mode(nil), new.Past...)}
	}

	common := 0
	for common < len(old.Past) && common < len(new.Past) && old.Past[common] == new.Past[common] {
		common++
	}

	// A trimmed history shifts the whole stack; match on the tail instead.
	if common == 0 && len(old.Past) > 0 && len(new.Past) > 0 {
		if shift := tailOverlap(old.Past, new.Past); shift > 0 {
			appended := new.Past[len(old.Past)-shift:]
			return &HistoryDelta{
				Appended: append([]Mode(nil), appended...),
				Removed:  shift,
			}
		}
	}

	delta := &HistoryDelta{Removed: len(old.Past) - common}
	if len(new.Past) > common {
		delta.Appended = append([]Mode(nil), new.Past[common:]...)
	}
	if delta.Removed == 0 && len(delta.Appended) == 0 {
		return nil
	}
	return delta
}

// tailOverlap returns how many leading items of old were dropped when new
// continues old[shift:]. Zero means no such relation.
func tailOverlap(old, new []Mode) int {
	for shift := 1; shift < len(old); shift++ {
		rest := old[shift:]
		if len(rest) > len(new) {
			continue
		}
		match := true
		for i := range rest {
			if rest[i] != new[i] {
				match = false
				break
			}
		}
		if match {
			return shift
		}
	}
	return 0
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.Mode == nil &&
		d.Past == nil &&
		d.CanUndo == nil &&
		d.CanRedo == nil
}

// Change is the outcome of a committed session operation.
type Change struct {
	State *State     `json:"state"`
	Diff  *StateDiff `json:"diff,omitempty"`
}
