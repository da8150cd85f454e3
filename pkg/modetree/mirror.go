package modetree

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/scalux/scalux/pkg/domain"
)

// Mirror has the shape of the definition, with every leaf replaced by its
// Mode and every internal node carrying its NodeRef. Application code uses it
// to address modes symbolically instead of typing path strings.
type Mirror struct {
	ref      NodeRef
	mode     domain.Mode
	leaf     bool
	keys     []string
	children map[string]*Mirror
}

// IsLeaf reports whether this entry stands for a mode.
func (m *Mirror) IsLeaf() bool { return m.leaf }

// Mode returns the mode of a leaf entry, or "" for an internal node.
func (m *Mirror) Mode() domain.Mode { return m.mode }

// Ref returns the node reference of this entry. For leaves it equals the mode.
func (m *Mirror) Ref() NodeRef { return m.ref }

// Keys returns the child keys in definition order.
func (m *Mirror) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Child returns the entry under key, or nil.
func (m *Mirror) Child(key string) *Mirror {
	if m == nil || m.leaf {
		return nil
	}
	return m.children[key]
}

// Get descends through keys.
func (m *Mirror) Get(keys ...string) (*Mirror, bool) {
	cur := m
	for _, k := range keys {
		cur = cur.Child(k)
		if cur == nil {
			return nil, false
		}
	}
	return cur, cur != nil
}

// MustMode descends through keys to a leaf and returns its mode.
// It panics if the path does not end on a leaf, which makes a typo in a
// symbolic reference fail at startup.
func (m *Mirror) MustMode(keys ...string) domain.Mode {
	e, ok := m.Get(keys...)
	if !ok || !e.leaf {
		panic(fmt.Sprintf("modetree: %q is not a mode", domain.JoinPath(keys...)))
	}
	return e.mode
}

// MustNode descends through keys to an internal node and returns its reference.
func (m *Mirror) MustNode(keys ...string) NodeRef {
	e, ok := m.Get(keys...)
	if !ok || e.leaf {
		panic(fmt.Sprintf("modetree: %q is not an internal node", domain.JoinPath(keys...)))
	}
	return e.ref
}

// Walk visits the entry and its descendants depth-first in definition order.
func (m *Mirror) Walk(fn func(*Mirror) error) error {
	if err := fn(m); err != nil {
		return err
	}
	for _, k := range m.keys {
		if err := m.children[k].Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON renders leaves as their mode string and nodes as objects,
// keeping definition order.
func (m *Mirror) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Mirror) encode(buf *bytes.Buffer) error {
	if m.leaf {
		b, err := json.Marshal(string(m.mode))
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}

	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(b)
		buf.WriteByte(':')
		if err := m.children[k].encode(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
