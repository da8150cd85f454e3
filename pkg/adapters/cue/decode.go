// Package cue reads mode tree definitions written in CUE.
//
// Structs are internal nodes (regular fields only, in declaration order),
// null is a leaf and a list of strings is shorthand for a node of leaves.
// The definition is the top-level value, or the value of a "tree" field
// when one is present.
package cue

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/scalux/scalux/pkg/domain"
)

// DecodeError reports a CUE value that is neither a node nor a leaf.
type DecodeError struct {
	Path   string
	Pos    string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Reason)
	}
	return fmt.Sprintf("%s: %q: %s", e.Pos, e.Path, e.Reason)
}

// Decode compiles src and converts it into a definition. filename is only
// used in error positions.
func Decode(filename string, src []byte) (domain.Tree, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compiling CUE definition: %w", err)
	}
	if tree := v.LookupPath(cue.ParsePath("tree")); tree.Exists() {
		v = tree
	}
	return DecodeValue(v)
}

// DecodeValue converts an already built CUE value.
func DecodeValue(v cue.Value) (domain.Tree, error) {
	return decode(v, "")
}

func decode(v cue.Value, path string) (domain.Tree, error) {
	if err := v.Err(); err != nil {
		return nil, &DecodeError{Path: path, Pos: v.Pos().String(), Reason: err.Error()}
	}

	switch v.IncompleteKind() {
	case cue.NullKind:
		return domain.Leaf{}, nil

	case cue.ListKind:
		it, err := v.List()
		if err != nil {
			return nil, &DecodeError{Path: path, Pos: v.Pos().String(), Reason: err.Error()}
		}
		var node domain.Node
		for it.Next() {
			key, err := it.Value().String()
			if err != nil {
				return nil, &DecodeError{Path: path, Pos: it.Value().Pos().String(), Reason: "leaf shorthand lists must contain only strings"}
			}
			node.Children = append(node.Children, domain.Key(key, domain.Leaf{}))
		}
		return node, nil

	case cue.StructKind:
		it, err := v.Fields()
		if err != nil {
			return nil, &DecodeError{Path: path, Pos: v.Pos().String(), Reason: err.Error()}
		}
		var node domain.Node
		for it.Next() {
			key := it.Label()
			child, err := decode(it.Value(), joinPath(path, key))
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, domain.Key(key, child))
		}
		return node, nil
	}

	return nil, &DecodeError{
		Path:   path,
		Pos:    v.Pos().String(),
		Reason: fmt.Sprintf("%v is neither a leaf (null) nor a node (struct)", v.IncompleteKind()),
	}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + domain.Separator + key
}
