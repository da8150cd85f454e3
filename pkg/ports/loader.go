package ports

import (
	"context"

	"github.com/scalux/scalux/pkg/domain"
)

// TreeLoader defines how a mode tree definition is obtained.
// This allows the definition source (file, memory, CUE) to be decoupled.
type TreeLoader interface {
	// Load returns the current definition. It is called once at startup and
	// again after every reload signal.
	Load(ctx context.Context) (domain.Tree, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying definition changes.
	// It abstracts away the specific event details, signaling only that a reload is required.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
