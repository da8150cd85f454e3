package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/scalux/scalux/pkg/domain"
)

// Loader implements ports.TreeLoader over a definition held in memory.
// Replace swaps the definition; callers that also hold the loader as a
// ports.Watchable are signalled on every swap.
type Loader struct {
	mu       sync.RWMutex
	def      domain.Tree
	watchers []chan struct{}
}

// NewLoader creates a new in-memory loader for def.
func NewLoader(def domain.Tree) *Loader {
	return &Loader{def: def}
}

// Load returns the current definition.
func (l *Loader) Load(ctx context.Context) (domain.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.def == nil {
		return nil, fmt.Errorf("memory loader: %w", &domain.ConfigurationError{Reason: "no definition"})
	}
	return l.def, nil
}

// Replace installs a new definition and notifies watchers.
func (l *Loader) Replace(def domain.Tree) {
	l.mu.Lock()
	l.def = def
	watchers := append([]chan struct{}(nil), l.watchers...)
	l.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch implements ports.Watchable. The returned channel is closed when ctx
// is done.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	l.mu.Lock()
	l.watchers = append(l.watchers, ch)
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, w := range l.watchers {
			if w == ch {
				l.watchers = append(l.watchers[:i], l.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}
