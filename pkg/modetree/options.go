package modetree

import (
	"sort"
	"strings"

	"github.com/scalux/scalux/pkg/domain"
)

// Selector classifies modes by the immediate child they take at one of a
// fixed list of internal nodes.
type Selector struct {
	tree  *Tree
	label string
	nodes []NodeRef
	keys  []string
}

// Selectors maps labels to their selector.
type Selectors map[string]*Selector

// Options builds one selector per label. Every label needs at least one
// reference and every reference must name an internal node of the tree;
// otherwise Options fails with domain.ErrConfiguration.
func (t *Tree) Options(spec map[string][]NodeRef) (Selectors, error) {
	labels := make([]string, 0, len(spec))
	for label := range spec {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make(Selectors, len(spec))
	var errs []error
	for _, label := range labels {
		sel, err := t.Option(label, spec[label]...)
		if err != nil {
			errs = append(errs, domain.Errors(err)...)
			continue
		}
		out[label] = sel
	}
	if err := domain.Join(errs); err != nil {
		return nil, err
	}
	return out, nil
}

// Option builds a single labelled selector.
func (t *Tree) Option(label string, refs ...NodeRef) (*Selector, error) {
	if len(refs) == 0 {
		return nil, &domain.ConfigurationError{Reason: "option " + quote(label) + " lists no nodes"}
	}

	sel := &Selector{tree: t, label: label}
	seenKey := make(map[string]bool)
	var errs []error
	for _, ref := range refs {
		keys, ok := t.nodes[ref]
		if !ok {
			reason := "option " + quote(label) + " references an unknown node"
			if t.isLeafPath(string(ref)) {
				reason = "option " + quote(label) + " references a leaf, not an internal node"
			}
			errs = append(errs, &domain.ConfigurationError{Path: string(ref), Reason: reason})
			continue
		}
		sel.nodes = append(sel.nodes, ref)
		for _, k := range keys {
			if !seenKey[k] {
				seenKey[k] = true
				sel.keys = append(sel.keys, k)
			}
		}
	}
	if err := domain.Join(errs); err != nil {
		return nil, err
	}
	return sel, nil
}

// Label returns the name the selector was built under.
func (s *Selector) Label() string { return s.label }

// Nodes returns the inspected node references in priority order.
func (s *Selector) Nodes() []NodeRef {
	return append([]NodeRef(nil), s.nodes...)
}

// Keys returns every value Select can produce: the union of the immediate
// child keys of the listed nodes.
func (s *Selector) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Select returns the key of the child taken by mode at the first listed node
// it passes through. The boolean is false when mode passes through none of
// them or is not a mode of the tree.
func (s *Selector) Select(mode domain.Mode) (string, bool) {
	if !s.tree.Has(mode) {
		return "", false
	}
	m := string(mode)
	for _, ref := range s.nodes {
		var rest string
		switch {
		case ref == domain.RootRef:
			rest = m
		case strings.HasPrefix(m, string(ref)+domain.Separator):
			rest = m[len(ref)+1:]
		default:
			continue
		}
		if i := strings.Index(rest, domain.Separator); i >= 0 {
			return rest[:i], true
		}
		return rest, true
	}
	return "", false
}

// Labels returns the labels in sorted order.
func (s Selectors) Labels() []string {
	labels := make([]string, 0, len(s))
	for l := range s {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Eval classifies mode under every label. Labels whose nodes the mode does
// not pass through are omitted.
func (s Selectors) Eval(mode domain.Mode) map[string]string {
	out := make(map[string]string, len(s))
	for label, sel := range s {
		if key, ok := sel.Select(mode); ok {
			out[label] = key
		}
	}
	return out
}

// ParseRefs converts raw path strings, as read from configuration, into
// node references.
func ParseRefs(spec map[string][]string) map[string][]NodeRef {
	out := make(map[string][]NodeRef, len(spec))
	for label, paths := range spec {
		refs := make([]NodeRef, 0, len(paths))
		for _, p := range paths {
			refs = append(refs, NodeRef(strings.Trim(p, domain.Separator)))
		}
		out[label] = refs
	}
	return out
}

func quote(s string) string {
	return `"` + s + `"`
}
