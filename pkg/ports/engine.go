package ports

import (
	"context"

	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/modetree"
)

// ModeEngine is the stateless surface of a compiled mode tree.
// Adapters (HTTP, MCP) call Tree on every request, so implementations may
// swap the tree on reload.
type ModeEngine interface {
	// Tree returns the current compiled tree.
	Tree() *modetree.Tree

	// Classify evaluates every configured option selector against mode.
	Classify(mode domain.Mode) (map[string]string, error)
}

// SessionService owns the current mode of each session.
// Every returned State is a snapshot; mutating it does not affect the store.
// Mutating operations return the new state together with its diff.
type SessionService interface {
	Start(ctx context.Context, sessionID string, mode domain.Mode) (*domain.State, error)
	Load(ctx context.Context, sessionID string) (*domain.State, error)
	Set(ctx context.Context, sessionID string, mode domain.Mode) (*domain.Change, error)
	ApplyMacro(ctx context.Context, sessionID, prefix, replacement string) (*domain.Change, error)
	ApplySub(ctx context.Context, sessionID, suffix, replacement string) (*domain.Change, error)
	Undo(ctx context.Context, sessionID string) (*domain.Change, error)
	Redo(ctx context.Context, sessionID string) (*domain.Change, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
}
