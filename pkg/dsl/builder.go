package dsl

import (
	"fmt"

	"github.com/scalux/scalux/pkg/adapters/memory"
	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/modetree"
)

// Builder manages the mode tree construction.
type Builder struct {
	root *NodeBuilder
	errs []error
}

// New creates a new tree builder.
func New() *Builder {
	b := &Builder{}
	b.root = &NodeBuilder{builder: b}
	return b
}

// Node adds an internal node at the root.
// If the node already exists, it returns the existing builder.
func (b *Builder) Node(key string) *NodeBuilder {
	return b.root.Node(key)
}

// Leaf adds leaves at the root.
func (b *Builder) Leaf(keys ...string) *Builder {
	b.root.Leaf(keys...)
	return b
}

// Definition returns the tree built so far.
func (b *Builder) Definition() domain.Node {
	return b.root.definition()
}

// Build compiles the definition.
func (b *Builder) Build() (*modetree.Tree, error) {
	if err := domain.Join(b.errs); err != nil {
		return nil, err
	}
	tree, err := modetree.Compile(b.Definition())
	if err != nil {
		return nil, fmt.Errorf("failed to compile mode tree: %w", err)
	}
	return tree, nil
}

// Loader wraps the definition in an in-memory ports.TreeLoader.
func (b *Builder) Loader() (*memory.Loader, error) {
	if err := domain.Join(b.errs); err != nil {
		return nil, err
	}
	return memory.NewLoader(b.Definition()), nil
}
