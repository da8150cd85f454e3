package dsl

import (
	"github.com/scalux/scalux/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring an internal node.
type NodeBuilder struct {
	builder *Builder
	path    []string
	order   []string
	nodes   map[string]*NodeBuilder
	leaves  map[string]bool
}

// Node adds (or returns) the child node under key.
func (n *NodeBuilder) Node(key string) *NodeBuilder {
	if child, ok := n.nodes[key]; ok {
		return child
	}
	if n.leaves[key] {
		n.conflict(key, "is already a leaf")
	}
	if n.nodes == nil {
		n.nodes = make(map[string]*NodeBuilder)
	}
	child := &NodeBuilder{
		builder: n.builder,
		path:    append(n.path[:len(n.path):len(n.path)], key),
	}
	n.nodes[key] = child
	if !n.leaves[key] {
		n.order = append(n.order, key)
	}
	return child
}

// Leaf adds leaf children. Adding an existing leaf again is a no-op.
func (n *NodeBuilder) Leaf(keys ...string) *NodeBuilder {
	for _, key := range keys {
		if n.leaves[key] {
			continue
		}
		if _, ok := n.nodes[key]; ok {
			n.conflict(key, "is already a node")
			continue
		}
		if n.leaves == nil {
			n.leaves = make(map[string]bool)
		}
		n.leaves[key] = true
		n.order = append(n.order, key)
	}
	return n
}

// Up returns the tree builder, to continue chaining from the root.
func (n *NodeBuilder) Up() *Builder {
	return n.builder
}

func (n *NodeBuilder) conflict(key, reason string) {
	n.builder.errs = append(n.builder.errs, &domain.ConfigurationError{
		Path:   domain.JoinPath(append(n.path[:len(n.path):len(n.path)], key)...),
		Reason: reason,
	})
}

func (n *NodeBuilder) definition() domain.Node {
	def := domain.Node{Children: make([]domain.Child, 0, len(n.order))}
	for _, key := range n.order {
		if child, ok := n.nodes[key]; ok {
			def.Children = append(def.Children, domain.Key(key, child.definition()))
			continue
		}
		def.Children = append(def.Children, domain.Key(key, domain.Leaf{}))
	}
	return def
}
