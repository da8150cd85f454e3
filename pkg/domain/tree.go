package domain

// Tree is a mode tree definition. It is either a Leaf or a Node; the set is
// closed, so a type switch over both cases is exhaustive.
type Tree interface {
	isTree()
}

// Leaf marks the end of a path. Every Leaf names exactly one Mode.
type Leaf struct{}

// Node is an internal branch point. Children keep their definition order.
type Node struct {
	Children []Child `json:"children" yaml:"children"`
}

// Child binds a key to its subtree.
type Child struct {
	Key  string `json:"key" yaml:"key"`
	Tree Tree   `json:"-" yaml:"-"`
}

func (Leaf) isTree() {}
func (Node) isTree() {}

// Branch builds a Node from ordered children.
func Branch(children ...Child) Node {
	return Node{Children: children}
}

// Key pairs a key with a subtree.
func Key(key string, t Tree) Child {
	return Child{Key: key, Tree: t}
}

// Leaves builds a Node whose children are all leaves.
func Leaves(keys ...string) Node {
	children := make([]Child, 0, len(keys))
	for _, k := range keys {
		children = append(children, Child{Key: k, Tree: Leaf{}})
	}
	return Node{Children: children}
}

// Keys returns the child keys in definition order.
func (n Node) Keys() []string {
	keys := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		keys = append(keys, c.Key)
	}
	return keys
}

// Lookup returns the subtree stored under key.
func (n Node) Lookup(key string) (Tree, bool) {
	for _, c := range n.Children {
		if c.Key == key {
			return c.Tree, true
		}
	}
	return nil, false
}
