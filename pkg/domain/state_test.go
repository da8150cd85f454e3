package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_PushUndoRedo(t *testing.T) {
	s := NewState("s1", "userPlaying/piecePicking")

	s.Push("userPlaying/pieceDumping", 0)
	s.Push("opponentPlaying/pieceDumping", 0)
	assert.Equal(t, Mode("opponentPlaying/pieceDumping"), s.Mode)
	assert.Equal(t, []Mode{"userPlaying/piecePicking", "userPlaying/pieceDumping"}, s.Past)

	require.NoError(t, s.Undo())
	assert.Equal(t, Mode("userPlaying/pieceDumping"), s.Mode)
	assert.True(t, s.CanRedo())

	require.NoError(t, s.Redo())
	assert.Equal(t, Mode("opponentPlaying/pieceDumping"), s.Mode)
	assert.False(t, s.CanRedo())

	t.Run("Push clears redo stack", func(t *testing.T) {
		require.NoError(t, s.Undo())
		s.Push("opponentPlaying/piecePicking", 0)
		assert.False(t, s.CanRedo())
		assert.True(t, errors.Is(s.Redo(), ErrNothingToRedo))
	})
}

func TestState_PushSameModeIsNoop(t *testing.T) {
	s := NewState("s1", "a/x")
	s.Push("a/x", 0)
	assert.Empty(t, s.Past)
}

func TestState_HistoryLimit(t *testing.T) {
	s := NewState("s1", "m0")
	for _, m := range []Mode{"m1", "m2", "m3", "m4"} {
		s.Push(m, 2)
	}
	assert.Equal(t, []Mode{"m2", "m3"}, s.Past)
}

func TestState_EmptyStacks(t *testing.T) {
	s := NewState("s1", "a/x")
	assert.ErrorIs(t, s.Undo(), ErrNothingToUndo)
	assert.ErrorIs(t, s.Redo(), ErrNothingToRedo)
}

func TestState_SnapshotIsolation(t *testing.T) {
	s := NewState("s1", "a")
	s.Push("b", 0)
	cp := s.Snapshot()
	cp.Past[0] = "zzz"
	assert.Equal(t, Mode("a"), s.Past[0])
}

func TestErrors_Taxonomy(t *testing.T) {
	var err error = &InvalidTransitionError{Kind: MacroPath, Mode: "a/x", Replacement: "b", Reason: "no such mode"}
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NotErrorIs(t, err, ErrInvalidPath)

	aggr := Join([]error{
		&ConfigurationError{Path: "a", Reason: "empty node"},
		&ConfigurationError{Path: "b", Reason: "empty node"},
	})
	assert.ErrorIs(t, aggr, ErrConfiguration)
	assert.Len(t, Errors(aggr), 2)
	assert.Contains(t, aggr.Error(), "2 errors")
}
