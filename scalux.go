package scalux

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/scalux/scalux/internal/logging"
	"github.com/scalux/scalux/pkg/adapters/file"
	"github.com/scalux/scalux/pkg/adapters/memory"
	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/modetree"
	"github.com/scalux/scalux/pkg/ports"
	"github.com/scalux/scalux/pkg/session"
)

// Engine is the high-level entry point for the scalux library.
// It holds the compiled tree and its option selectors, and owns a session
// manager that keeps the current mode of each session.
type Engine struct {
	mu        sync.RWMutex
	tree      *modetree.Tree
	selectors modetree.Selectors

	loader       ports.TreeLoader
	options      map[string][]modetree.NodeRef
	store        ports.StateStore
	locker       ports.DistributedLocker
	historyLimit *int
	hooks        domain.LifecycleHooks
	onReload     []func(*modetree.Tree)
	logger       *slog.Logger
	sessions     *session.Manager

	Name string
}

var _ ports.ModeEngine = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom TreeLoader, bypassing the default file loader.
func WithLoader(l ports.TreeLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithOptions declares the option selectors as label -> node paths.
func WithOptions(spec map[string][]string) Option {
	return func(e *Engine) {
		e.options = modetree.ParseRefs(spec)
	}
}

// WithStore sets the session store (default: in memory).
func WithStore(s ports.StateStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker enables distributed session locking.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithHistoryLimit bounds the undo history of every session.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) {
		e.historyLimit = &n
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = domain.MergeHooks(e.hooks, hooks)
	}
}

// WithReloadHook registers a callback run after every successful reload.
func WithReloadHook(fn func(*modetree.Tree)) Option {
	return func(e *Engine) {
		e.onReload = append(e.onReload, fn)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes a new Engine from the definition file at path.
// If WithLoader is provided, path can be empty and is only used as a name.
func New(path string, opts ...Option) (*Engine, error) {
	eng := &Engine{}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil {
		if path == "" {
			return nil, fmt.Errorf("a definition path is required when no custom loader is provided")
		}
		l, err := file.NewLoader(path, file.WithLogger(eng.logger))
		if err != nil {
			return nil, err
		}
		eng.loader = l
	}
	if path != "" {
		eng.Name = filepath.Base(path)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("tree", eng.Name)
	}

	if err := eng.Reload(context.Background()); err != nil {
		return nil, err
	}

	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	sessionOpts := []session.Option{
		session.WithLogger(eng.logger),
		session.WithLifecycleHooks(eng.hooks),
	}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	if eng.historyLimit != nil {
		sessionOpts = append(sessionOpts, session.WithHistoryLimit(*eng.historyLimit))
	}
	eng.sessions = session.NewManager(eng.store, eng, sessionOpts...)

	return eng, nil
}

// FromDefinition builds an Engine around an in-memory definition.
func FromDefinition(def domain.Tree, opts ...Option) (*Engine, error) {
	return New("", append([]Option{WithLoader(memory.NewLoader(def))}, opts...)...)
}

// Reload asks the loader for the definition again and swaps in the new tree
// and selectors. On failure the current tree is kept.
func (e *Engine) Reload(ctx context.Context) error {
	def, err := e.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load definition: %w", err)
	}
	tree, err := modetree.Compile(def)
	if err != nil {
		return err
	}
	var selectors modetree.Selectors
	if len(e.options) > 0 {
		selectors, err = tree.Options(e.options)
		if err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.tree = tree
	e.selectors = selectors
	e.mu.Unlock()

	e.logger.Debug("tree compiled", "modes", tree.Len())
	for _, fn := range e.onReload {
		fn(tree)
	}
	return nil
}

// Watch returns a channel that signals when the underlying definition changes.
// Returns error if the loader does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan struct{}, error) {
	if w, ok := e.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current loader does not support watching")
}

// AutoReload reloads the tree on every change signal until ctx is done.
// Failed reloads are logged and the previous tree stays active.
func (e *Engine) AutoReload(ctx context.Context) error {
	ch, err := e.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for range ch {
			if err := e.Reload(ctx); err != nil {
				e.logger.Warn("reload failed, keeping previous tree", "err", err)
				continue
			}
			e.logger.Info("tree reloaded", "modes", e.Tree().Len())
		}
	}()
	return nil
}

// Tree returns the current compiled tree.
func (e *Engine) Tree() *modetree.Tree {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree
}

// Selectors returns the current option selectors.
func (e *Engine) Selectors() modetree.Selectors {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selectors
}

// Modes lists every mode of the current tree.
func (e *Engine) Modes() []domain.Mode {
	return e.Tree().Modes()
}

// Macro builds a prefix handle on the current tree.
func (e *Engine) Macro(prefix string) (*modetree.Handle, error) {
	return e.Tree().Macro(prefix)
}

// Sub builds a suffix handle on the current tree.
func (e *Engine) Sub(suffix string) (*modetree.Handle, error) {
	return e.Tree().Sub(suffix)
}

// Classify evaluates every option selector against mode.
func (e *Engine) Classify(mode domain.Mode) (map[string]string, error) {
	e.mu.RLock()
	tree, selectors := e.tree, e.selectors
	e.mu.RUnlock()

	if _, err := tree.Parse(string(mode)); err != nil {
		return nil, err
	}
	return selectors.Eval(mode), nil
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Loader returns the underlying TreeLoader used by the engine.
func (e *Engine) Loader() ports.TreeLoader {
	return e.loader
}
