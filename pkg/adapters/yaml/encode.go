package yaml

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/scalux/scalux/pkg/domain"
)

// Encode renders a definition as YAML, preserving child order. Leaves are
// written as empty values.
func Encode(def domain.Tree) ([]byte, error) {
	n, err := EncodeNode(def)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return nil, fmt.Errorf("failed to encode definition: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeNode converts a definition into a YAML node tree.
func EncodeNode(def domain.Tree) (*yaml.Node, error) {
	switch t := def.(type) {
	case domain.Leaf, *domain.Leaf:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}, nil
	case *domain.Node:
		if t == nil {
			return nil, fmt.Errorf("cannot encode nil node")
		}
		return EncodeNode(*t)
	case domain.Node:
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, c := range t.Children {
			v, err := EncodeNode(c.Tree)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", c.Key, err)
			}
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Key},
				v,
			)
		}
		return m, nil
	}
	return nil, fmt.Errorf("cannot encode %T", def)
}
