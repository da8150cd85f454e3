// Package yaml reads and writes mode tree definitions as YAML or JSON.
//
// A mapping is an internal node whose keys keep their document order. A
// null value (empty, ~ or null) is a leaf. A sequence of strings is
// shorthand for a node whose children are all leaves:
//
//	userPlaying: [piecePicking, pieceDumping]
//	opponentPlaying:
//	  piecePicking:
//	  pieceDumping:
package yaml

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/scalux/scalux/pkg/domain"
)

// ErrEmptyDocument is returned when the input holds no definition.
var ErrEmptyDocument = errors.New("empty definition document")

// SyntaxError reports a value that is neither a node nor a leaf.
type SyntaxError struct {
	Path   string
	Line   int
	Column int
	Reason string
}

func (e *SyntaxError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Reason)
	}
	return fmt.Sprintf("line %d:%d: %q: %s", e.Line, e.Column, e.Path, e.Reason)
}

// Decode parses a definition. JSON input is accepted as YAML flow style.
func Decode(data []byte) (domain.Tree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, ErrEmptyDocument
	}
	return DecodeNode(doc.Content[0])
}

// DecodeNode converts an already parsed YAML node. It lets callers embed a
// definition inside a larger document.
func DecodeNode(n *yaml.Node) (domain.Tree, error) {
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil, ErrEmptyDocument
		}
		n = n.Content[0]
	}
	d := &decoder{enclosing: make(map[*yaml.Node]bool)}
	return d.decode(n, "")
}

// decoder tracks the nodes on the current descent path, so an alias that
// points back at one of them is rejected instead of followed forever.
type decoder struct {
	enclosing map[*yaml.Node]bool
}

func (d *decoder) decode(n *yaml.Node, path string) (domain.Tree, error) {
	d.enclosing[n] = true
	defer delete(d.enclosing, n)

	switch n.Kind {
	case yaml.AliasNode:
		if d.enclosing[n.Alias] {
			return nil, syntaxErr(n, path, "alias refers to an enclosing node")
		}
		return d.decode(n.Alias, path)

	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return domain.Leaf{}, nil
		}
		return nil, syntaxErr(n, path, fmt.Sprintf("scalar %q is neither a leaf (null) nor a node (mapping)", n.Value))

	case yaml.SequenceNode:
		node := domain.Node{Children: make([]domain.Child, 0, len(n.Content))}
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode || item.Tag == "!!null" {
				return nil, syntaxErr(item, path, "leaf shorthand lists must contain only keys")
			}
			node.Children = append(node.Children, domain.Key(item.Value, domain.Leaf{}))
		}
		return node, nil

	case yaml.MappingNode:
		node := domain.Node{Children: make([]domain.Child, 0, len(n.Content)/2)}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, syntaxErr(k, path, "keys must be scalars")
			}
			child, err := d.decode(v, joinPath(path, k.Value))
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, domain.Key(k.Value, child))
		}
		return node, nil
	}
	return nil, syntaxErr(n, path, "unsupported YAML node")
}

func syntaxErr(n *yaml.Node, path, reason string) error {
	return &SyntaxError{Path: path, Line: n.Line, Column: n.Column, Reason: reason}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + domain.Separator + key
}
