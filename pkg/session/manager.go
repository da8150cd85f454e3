package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scalux/scalux/internal/logging"
	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/modetree"
	"github.com/scalux/scalux/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock is held.
const DefaultLockTTL = 30 * time.Second

// TreeProvider yields the tree sessions are validated against. It is
// consulted on every operation, so the tree may change between calls.
type TreeProvider interface {
	Tree() *modetree.Tree
}

type staticTree struct{ t *modetree.Tree }

func (s staticTree) Tree() *modetree.Tree { return s.t }

// Static wraps a fixed tree as a TreeProvider.
func Static(t *modetree.Tree) TreeProvider { return staticTree{t} }

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the current mode of every session, ensuring safe concurrent
// operations. It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.StateStore
	trees TreeProvider

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker       ports.DistributedLocker // Optional distributed locker
	lockTTL      time.Duration
	historyLimit int
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
}

var _ ports.SessionService = (*Manager)(nil)

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHistoryLimit bounds the undo stack. Zero or less keeps every step.
func WithHistoryLimit(n int) Option {
	return func(m *Manager) {
		m.historyLimit = n
	}
}

// WithLifecycleHooks registers observability callbacks. Repeated calls
// accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = domain.MergeHooks(m.hooks, hooks)
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.StateStore, trees TreeProvider, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		trees:        trees,
		locks:        make(map[string]*lockEntry),
		lockTTL:      DefaultLockTTL,
		historyLimit: domain.DefaultHistoryLimit,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// Start creates the session at mode, replacing any previous state.
func (m *Manager) Start(ctx context.Context, sessionID string, mode domain.Mode) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		parsed, err := m.trees.Tree().Parse(string(mode))
		if err != nil {
			return err
		}

		state = domain.NewState(sessionID, parsed)
		if err := m.store.Save(ctx, sessionID, state); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	if err != nil {
		m.reject(ctx, sessionID, domain.KindStart, "", string(mode), err)
		return nil, err
	}

	m.logger.Debug("session started", "session_id", sessionID, "mode", state.Mode)
	m.emit(ctx, domain.KindStart, nil, state)
	return state.Snapshot(), nil
}

// LoadOrStart loads a session, creating it at mode when it does not exist.
func (m *Manager) LoadOrStart(ctx context.Context, sessionID string, mode domain.Mode) (*domain.State, error) {
	var (
		state   *domain.State
		created bool
	)
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.load(ctx, sessionID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		parsed, err := m.trees.Tree().Parse(string(mode))
		if err != nil {
			return err
		}
		state = domain.NewState(sessionID, parsed)
		created = true
		if err := m.store.Save(ctx, sessionID, state); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		m.emit(ctx, domain.KindStart, nil, state)
	}
	return state.Snapshot(), nil
}

// Load retrieves an existing session. The persisted mode is checked against
// the current tree; history entries the tree no longer has are dropped.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.load(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Save validates and persists a state built by the caller.
func (m *Manager) Save(ctx context.Context, sessionID string, state *domain.State) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		cp := state.Snapshot()
		cp.SessionID = sessionID
		if err := m.revalidate(cp); err != nil {
			return err
		}
		return m.store.Save(ctx, sessionID, cp)
	})
}

// Set moves the session to mode.
func (m *Manager) Set(ctx context.Context, sessionID string, mode domain.Mode) (*domain.Change, error) {
	return m.mutate(ctx, sessionID, domain.KindSet, string(mode), func(tree *modetree.Tree, s *domain.State) error {
		next, err := tree.Parse(string(mode))
		if err != nil {
			return err
		}
		s.Push(next, m.historyLimit)
		return nil
	})
}

// ApplyMacro rewrites the leading path prefix of the session's mode into
// replacement.
func (m *Manager) ApplyMacro(ctx context.Context, sessionID, prefix, replacement string) (*domain.Change, error) {
	return m.mutate(ctx, sessionID, domain.KindMacro, replacement, func(tree *modetree.Tree, s *domain.State) error {
		h, err := tree.Macro(prefix)
		if err != nil {
			return err
		}
		next, err := h.Next(replacement, s.Mode)
		if err != nil {
			return err
		}
		s.Push(next, m.historyLimit)
		return nil
	})
}

// ApplySub rewrites the trailing path suffix of the session's mode into
// replacement.
func (m *Manager) ApplySub(ctx context.Context, sessionID, suffix, replacement string) (*domain.Change, error) {
	return m.mutate(ctx, sessionID, domain.KindSub, replacement, func(tree *modetree.Tree, s *domain.State) error {
		h, err := tree.Sub(suffix)
		if err != nil {
			return err
		}
		next, err := h.Next(replacement, s.Mode)
		if err != nil {
			return err
		}
		s.Push(next, m.historyLimit)
		return nil
	})
}

// Undo steps the session back to its previous mode.
func (m *Manager) Undo(ctx context.Context, sessionID string) (*domain.Change, error) {
	return m.mutate(ctx, sessionID, domain.KindUndo, "", func(_ *modetree.Tree, s *domain.State) error {
		return s.Undo()
	})
}

// Redo re-applies the most recently undone mode.
func (m *Manager) Redo(ctx context.Context, sessionID string) (*domain.Change, error) {
	return m.mutate(ctx, sessionID, domain.KindRedo, "", func(_ *modetree.Tree, s *domain.State) error {
		return s.Redo()
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

func (m *Manager) mutate(
	ctx context.Context,
	sessionID string,
	kind domain.TransitionKind,
	target string,
	fn func(*modetree.Tree, *domain.State) error,
) (*domain.Change, error) {
	var before, after *domain.State
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := m.load(ctx, sessionID)
		if err != nil {
			return err
		}
		before = state.Snapshot()

		if err := fn(m.trees.Tree(), state); err != nil {
			return err
		}
		if err := m.store.Save(ctx, sessionID, state); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		after = state
		return nil
	})
	if err != nil {
		var mode domain.Mode
		if before != nil {
			mode = before.Mode
		}
		m.reject(ctx, sessionID, kind, mode, target, err)
		return nil, err
	}

	m.logger.Debug("session moved",
		"session_id", sessionID,
		"kind", string(kind),
		"from", before.Mode,
		"mode", after.Mode,
	)
	m.emit(ctx, kind, before, after)
	return &domain.Change{
		State: after.Snapshot(),
		Diff:  domain.Diff(before, after),
	}, nil
}

func (m *Manager) load(ctx context.Context, sessionID string) (*domain.State, error) {
	state, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.SessionID == "" {
		state.SessionID = sessionID
	}
	if err := m.revalidate(state); err != nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, err)
	}
	return state, nil
}

// revalidate checks a state that crossed a trust boundary against the tree.
func (m *Manager) revalidate(state *domain.State) error {
	tree := m.trees.Tree()
	if _, err := tree.Parse(string(state.Mode)); err != nil {
		return err
	}
	state.Past = keepKnown(tree, state.Past)
	state.Future = keepKnown(tree, state.Future)
	return nil
}

func keepKnown(tree *modetree.Tree, modes []domain.Mode) []domain.Mode {
	out := modes[:0]
	for _, mode := range modes {
		if tree.Has(mode) {
			out = append(out, mode)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (m *Manager) emit(ctx context.Context, kind domain.TransitionKind, before, after *domain.State) {
	if m.hooks.OnTransition == nil {
		return
	}
	ev := &domain.TransitionEvent{
		Timestamp: time.Now(),
		SessionID: after.SessionID,
		Kind:      kind,
		To:        after.Mode,
		Diff:      domain.Diff(before, after),
	}
	if before != nil {
		ev.From = before.Mode
	}
	m.hooks.OnTransition(ctx, ev)
}

func (m *Manager) reject(ctx context.Context, sessionID string, kind domain.TransitionKind, mode domain.Mode, target string, err error) {
	m.logger.Debug("session move rejected",
		"session_id", sessionID,
		"kind", string(kind),
		"mode", mode,
		"err", err,
	)
	if m.hooks.OnReject == nil {
		return
	}
	m.hooks.OnReject(ctx, &domain.RejectEvent{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Kind:      kind,
		Mode:      mode,
		Target:    target,
		Err:       err,
	})
}
