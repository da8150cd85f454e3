package modetree

import (
	"fmt"
	"strings"

	"github.com/scalux/scalux/pkg/domain"
)

// NodeRef identifies an internal node by its "/"-joined path.
// The root is domain.RootRef.
type NodeRef string

// Tree is a compiled mode tree. It is immutable and safe for concurrent use.
type Tree struct {
	def       domain.Tree
	modes     []domain.Mode
	modeSet   map[domain.Mode]struct{}
	nodes     map[NodeRef][]string
	nodeOrder []NodeRef
	leaves    map[string]struct{}
	mirror    *Mirror

	prefixes        map[string]struct{}
	suffixes        map[string]struct{}
	prefixesByDepth map[int][]string
	suffixesByDepth map[int][]string
}

// Compile flattens a definition into its modes and indexes every partial path.
// All structural problems are reported at once, as domain.ConfigurationError
// values (joined in a domain.AggregateError when there are several).
func Compile(def domain.Tree) (*Tree, error) {
	root, err := rootNode(def)
	if err != nil {
		return nil, err
	}

	c := &compiler{t: &Tree{
		def:             def,
		modeSet:         make(map[domain.Mode]struct{}),
		nodes:           make(map[NodeRef][]string),
		leaves:          make(map[string]struct{}),
		prefixes:        make(map[string]struct{}),
		suffixes:        make(map[string]struct{}),
		prefixesByDepth: make(map[int][]string),
		suffixesByDepth: make(map[int][]string),
	}}
	c.t.mirror = c.walk(root, nil)

	if err := domain.Join(c.errs); err != nil {
		return nil, err
	}
	return c.t, nil
}

// MustCompile is like Compile but panics on error.
// It simplifies initialization of package-level trees.
func MustCompile(def domain.Tree) *Tree {
	t, err := Compile(def)
	if err != nil {
		panic(fmt.Sprintf("modetree: Compile: %v", err))
	}
	return t
}

func rootNode(def domain.Tree) (domain.Node, error) {
	switch n := def.(type) {
	case domain.Node:
		if len(n.Children) == 0 {
			return domain.Node{}, &domain.ConfigurationError{Reason: "no modes defined"}
		}
		return n, nil
	case *domain.Node:
		if n == nil {
			return domain.Node{}, &domain.ConfigurationError{Reason: "no modes defined"}
		}
		return rootNode(*n)
	case nil:
		return domain.Node{}, &domain.ConfigurationError{Reason: "no modes defined"}
	default:
		return domain.Node{}, &domain.ConfigurationError{Reason: "root must be a node, not a leaf"}
	}
}

type compiler struct {
	t    *Tree
	errs []error
}

func (c *compiler) fail(keys []string, format string, args ...any) {
	c.errs = append(c.errs, &domain.ConfigurationError{
		Path:   domain.JoinPath(keys...),
		Reason: fmt.Sprintf(format, args...),
	})
}

func (c *compiler) walk(def domain.Tree, keys []string) *Mirror {
	switch n := def.(type) {
	case domain.Leaf:
		return c.leaf(keys)
	case *domain.Leaf:
		return c.leaf(keys)
	case domain.Node:
		return c.node(n, keys)
	case *domain.Node:
		if n == nil {
			c.fail(keys, "missing subtree")
			return nil
		}
		return c.node(*n, keys)
	default:
		c.fail(keys, "missing subtree")
		return nil
	}
}

func (c *compiler) leaf(keys []string) *Mirror {
	path := domain.JoinPath(keys...)
	mode := domain.Mode(path)

	c.t.modes = append(c.t.modes, mode)
	c.t.modeSet[mode] = struct{}{}
	c.t.leaves[path] = struct{}{}

	for i := 1; i <= len(keys); i++ {
		c.addPartial(c.t.prefixes, c.t.prefixesByDepth, domain.JoinPath(keys[:i]...), i)
		c.addPartial(c.t.suffixes, c.t.suffixesByDepth, domain.JoinPath(keys[len(keys)-i:]...), i)
	}

	return &Mirror{ref: NodeRef(path), mode: mode, leaf: true}
}

func (c *compiler) addPartial(set map[string]struct{}, byDepth map[int][]string, path string, depth int) {
	if _, ok := set[path]; ok {
		return
	}
	set[path] = struct{}{}
	byDepth[depth] = append(byDepth[depth], path)
}

func (c *compiler) node(n domain.Node, keys []string) *Mirror {
	if len(n.Children) == 0 {
		c.fail(keys, "node has no children")
		return nil
	}

	ref := NodeRef(domain.JoinPath(keys...))
	m := &Mirror{
		ref:      ref,
		children: make(map[string]*Mirror, len(n.Children)),
	}

	seen := make(map[string]bool, len(n.Children))
	for _, child := range n.Children {
		if reason := checkKey(child.Key); reason != "" {
			c.fail(keys, "key %q %s", child.Key, reason)
			continue
		}
		if seen[child.Key] {
			c.fail(keys, "duplicate key %q", child.Key)
			continue
		}
		seen[child.Key] = true

		childKeys := append(keys[:len(keys):len(keys)], child.Key)
		if sub := c.walk(child.Tree, childKeys); sub != nil {
			m.keys = append(m.keys, child.Key)
			m.children[child.Key] = sub
		}
	}

	c.t.nodes[ref] = append([]string(nil), m.keys...)
	c.t.nodeOrder = append(c.t.nodeOrder, ref)
	return m
}

func checkKey(key string) string {
	switch {
	case key == "":
		return "is empty"
	case strings.Contains(key, domain.Separator):
		return fmt.Sprintf("contains the separator %q", domain.Separator)
	}
	return ""
}

// Definition returns the definition the tree was compiled from.
func (t *Tree) Definition() domain.Tree {
	return t.def
}

// Modes returns every mode in definition order.
func (t *Tree) Modes() []domain.Mode {
	return append([]domain.Mode(nil), t.modes...)
}

// Len is the number of modes.
func (t *Tree) Len() int {
	return len(t.modes)
}

// Has reports whether mode names a leaf of the tree.
func (t *Tree) Has(mode domain.Mode) bool {
	_, ok := t.modeSet[mode]
	return ok
}

// Parse validates an untrusted string, such as a deserialized current mode.
func (t *Tree) Parse(s string) (domain.Mode, error) {
	mode := domain.Mode(s)
	if !t.Has(mode) {
		return "", &domain.UnknownModeError{Value: s}
	}
	return mode, nil
}

// Mirror returns the symbolic mirror of the definition.
func (t *Tree) Mirror() *Mirror {
	return t.mirror
}

// Nodes returns every internal node reference, parents after their children.
func (t *Tree) Nodes() []NodeRef {
	return append([]NodeRef(nil), t.nodeOrder...)
}

// Children returns the ordered child keys of an internal node.
func (t *Tree) Children(ref NodeRef) ([]string, bool) {
	keys, ok := t.nodes[ref]
	if !ok {
		return nil, false
	}
	return append([]string(nil), keys...), true
}

// IsNode reports whether ref names an internal node.
func (t *Tree) IsNode(ref NodeRef) bool {
	_, ok := t.nodes[ref]
	return ok
}

// IsPrefix reports whether path is a root-anchored prefix of some mode.
func (t *Tree) IsPrefix(path string) bool {
	_, ok := t.prefixes[path]
	return ok
}

// IsSuffix reports whether path is a leaf-anchored suffix of some mode.
func (t *Tree) IsSuffix(path string) bool {
	_, ok := t.suffixes[path]
	return ok
}

func (t *Tree) isLeafPath(path string) bool {
	_, ok := t.leaves[path]
	return ok
}
