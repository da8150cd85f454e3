package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scalux/scalux/pkg/adapters/memory"
	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/modetree"
	"github.com/scalux/scalux/pkg/ports"
	"github.com/scalux/scalux/pkg/session"
)

func gameTree() *modetree.Tree {
	return modetree.MustCompile(domain.Branch(
		domain.Key("userPlaying", domain.Leaves("piecePicking", "pieceDumping")),
		domain.Key("opponentPlaying", domain.Leaves("piecePicking", "pieceDumping")),
	))
}

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.State
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, state *domain.State) error {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.State)
	}
	s.data[sessionID] = state.Snapshot()
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.data[sessionID]; ok {
		return state.Snapshot(), nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_Scenario(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), session.Static(gameTree()))
	ctx := context.Background()

	state, err := mgr.Start(ctx, "g1", "userPlaying/piecePicking")
	require.NoError(t, err)
	assert.Equal(t, domain.Mode("userPlaying/piecePicking"), state.Mode)

	change, err := mgr.ApplyMacro(ctx, "g1", "userPlaying", "opponentPlaying")
	require.NoError(t, err)
	assert.Equal(t, domain.Mode("opponentPlaying/piecePicking"), change.State.Mode)
	require.NotNil(t, change.Diff)
	assert.Equal(t, domain.Mode("userPlaying/piecePicking"), *change.Diff.From)

	change, err = mgr.ApplySub(ctx, "g1", "piecePicking", "pieceDumping")
	require.NoError(t, err)
	assert.Equal(t, domain.Mode("opponentPlaying/pieceDumping"), change.State.Mode)
	assert.Equal(t, []domain.Mode{"userPlaying/piecePicking", "opponentPlaying/piecePicking"}, change.State.Past)

	change, err = mgr.Undo(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.Mode("opponentPlaying/piecePicking"), change.State.Mode)

	change, err = mgr.Redo(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.Mode("opponentPlaying/pieceDumping"), change.State.Mode)

	_, err = mgr.Redo(ctx, "g1")
	assert.ErrorIs(t, err, domain.ErrNothingToRedo)

	loaded, err := mgr.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.Mode("opponentPlaying/pieceDumping"), loaded.Mode)
}

func TestManager_RejectsAndKeepsState(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), session.Static(gameTree()))
	ctx := context.Background()

	_, err := mgr.Start(ctx, "g1", "userPlaying/piecePicking")
	require.NoError(t, err)

	tests := []struct {
		name string
		op   func() error
		want error
	}{
		{"unknown set", func() error { _, err := mgr.Set(ctx, "g1", "userPlaying"); return err }, domain.ErrUnknownMode},
		{"bad macro path", func() error { _, err := mgr.ApplyMacro(ctx, "g1", "nonexistentKey", "x"); return err }, domain.ErrInvalidPath},
		{"macro mismatch", func() error {
			_, err := mgr.ApplyMacro(ctx, "g1", "opponentPlaying", "userPlaying")
			return err
		}, domain.ErrInvalidTransition},
		{"bad sub replacement", func() error { _, err := mgr.ApplySub(ctx, "g1", "piecePicking", "nope"); return err }, domain.ErrInvalidTransition},
		{"empty undo", func() error { _, err := mgr.Undo(ctx, "g1"); return err }, domain.ErrNothingToUndo},
		{"missing session", func() error { _, err := mgr.Set(ctx, "missing", "userPlaying/piecePicking"); return err }, domain.ErrSessionNotFound},
		{"start unknown", func() error { _, err := mgr.Start(ctx, "g2", "bogus"); return err }, domain.ErrUnknownMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.op(), tt.want)

			state, err := mgr.Load(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, domain.Mode("userPlaying/piecePicking"), state.Mode)
		})
	}
}

func TestManager_RevalidatesPersistedMode(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	stale := domain.NewState("old", "removedMode")
	require.NoError(t, store.Save(ctx, "old", stale))

	mgr := session.NewManager(store, session.Static(gameTree()))
	_, err := mgr.Load(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrUnknownMode)

	_, err = mgr.Set(ctx, "old", "userPlaying/piecePicking")
	assert.ErrorIs(t, err, domain.ErrUnknownMode)

	// History entries that vanished from the tree are dropped.
	mixed := domain.NewState("mixed", "userPlaying/piecePicking")
	mixed.Past = []domain.Mode{"gone/a", "opponentPlaying/piecePicking"}
	require.NoError(t, store.Save(ctx, "mixed", mixed))

	loaded, err := mgr.Load(ctx, "mixed")
	require.NoError(t, err)
	assert.Equal(t, []domain.Mode{"opponentPlaying/piecePicking"}, loaded.Past)

	assert.ErrorIs(t, mgr.Save(ctx, "bad", domain.NewState("bad", "nope")), domain.ErrUnknownMode)
}

func TestManager_HistoryLimit(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), session.Static(gameTree()), session.WithHistoryLimit(2))
	ctx := context.Background()

	_, err := mgr.Start(ctx, "h", "userPlaying/piecePicking")
	require.NoError(t, err)
	for _, m := range []domain.Mode{
		"userPlaying/pieceDumping",
		"opponentPlaying/pieceDumping",
		"opponentPlaying/piecePicking",
	} {
		_, err := mgr.Set(ctx, "h", m)
		require.NoError(t, err)
	}

	state, err := mgr.Load(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, []domain.Mode{"userPlaying/pieceDumping", "opponentPlaying/pieceDumping"}, state.Past)
}

func TestManager_Hooks(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []domain.TransitionEvent
		rejects     []domain.RejectEvent
	)
	hooks := domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, *e)
		},
		OnReject: func(_ context.Context, e *domain.RejectEvent) {
			mu.Lock()
			defer mu.Unlock()
			rejects = append(rejects, *e)
		},
	}

	mgr := session.NewManager(memory.NewStore(), session.Static(gameTree()), session.WithLifecycleHooks(hooks))
	ctx := context.Background()

	_, err := mgr.Start(ctx, "s", "userPlaying/piecePicking")
	require.NoError(t, err)
	_, err = mgr.ApplySub(ctx, "s", "piecePicking", "pieceDumping")
	require.NoError(t, err)
	_, err = mgr.ApplyMacro(ctx, "s", "opponentPlaying", "userPlaying")
	require.Error(t, err)

	require.Len(t, transitions, 2)
	assert.Equal(t, domain.KindStart, transitions[0].Kind)
	assert.Equal(t, domain.KindSub, transitions[1].Kind)
	assert.Equal(t, domain.Mode("userPlaying/piecePicking"), transitions[1].From)
	assert.Equal(t, domain.Mode("userPlaying/pieceDumping"), transitions[1].To)
	require.NotNil(t, transitions[1].Diff)
	require.NotNil(t, transitions[1].Diff.Mode)
	assert.Equal(t, domain.Mode("userPlaying/pieceDumping"), *transitions[1].Diff.Mode)
	require.NotNil(t, transitions[0].Diff, "start carries the full state as a diff")

	require.Len(t, rejects, 1)
	assert.Equal(t, domain.KindMacro, rejects[0].Kind)
	assert.Equal(t, domain.Mode("userPlaying/pieceDumping"), rejects[0].Mode)
	assert.ErrorIs(t, rejects[0].Err, domain.ErrInvalidTransition)
}

func TestManager_Locking(t *testing.T) {
	const writers = 10

	keys := make([]string, 0, writers+1)
	for i := 0; i <= writers; i++ {
		keys = append(keys, fmt.Sprintf("m%d", i))
	}
	tree := modetree.MustCompile(domain.Leaves(keys...))

	store := &SlowStore{}
	mgr := session.NewManager(store, session.Static(tree), session.WithHistoryLimit(0))
	ctx := context.Background()
	id := "race-test"

	_, err := mgr.Start(ctx, id, "m0")
	require.NoError(t, err)

	// Each Set is a read-modify-write of the history; without
	// serialization some pushes would be lost.
	var wg sync.WaitGroup
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(target domain.Mode) {
			defer wg.Done()
			_, err := mgr.Set(ctx, id, target)
			assert.NoError(t, err)
		}(domain.Mode(keys[i]))
	}
	wg.Wait()

	state, err := mgr.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, state.Past, writers, "every serialized write must be recorded")
}

func TestManager_LoadOrStart(t *testing.T) {
	store := &SlowStore{}
	mgr := session.NewManager(store, session.Static(gameTree()))
	ctx := context.Background()
	id := "atomic-init"

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := mgr.LoadOrStart(ctx, id, "userPlaying/piecePicking")
			assert.NoError(t, err)
			assert.NotNil(t, state)
		}()
	}
	wg.Wait()

	state, err := mgr.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.Mode("userPlaying/piecePicking"), state.Mode)
}

type countingLocker struct {
	mu    sync.Mutex
	locks int
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	l.locks++
	l.mu.Unlock()
	return func(context.Context) error { return nil }, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	mgr := session.NewManager(memory.NewStore(), session.Static(gameTree()),
		session.WithLocker(locker), session.WithLockTTL(time.Second))
	ctx := context.Background()

	_, err := mgr.Start(ctx, "d", "userPlaying/piecePicking")
	require.NoError(t, err)
	_, err = mgr.Set(ctx, "d", "userPlaying/pieceDumping")
	require.NoError(t, err)

	assert.Equal(t, 2, locker.locks)
}
