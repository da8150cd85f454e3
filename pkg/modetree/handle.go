package modetree

import (
	"fmt"
	"strings"

	"github.com/scalux/scalux/pkg/domain"
)

// Handle constrains and rewrites one end of a mode: the leading keys for a
// macro handle, the trailing keys for a sub handle. Handles are immutable.
type Handle struct {
	tree  *Tree
	kind  domain.PathKind
	path  string
	depth int
}

// Macro builds a handle over a root-anchored prefix.
// It fails with domain.ErrInvalidPath if no mode starts with prefix.
func (t *Tree) Macro(prefix string) (*Handle, error) {
	if prefix == "" || !t.IsPrefix(prefix) {
		return nil, &domain.InvalidPathError{Kind: domain.MacroPath, Path: prefix}
	}
	return &Handle{tree: t, kind: domain.MacroPath, path: prefix, depth: domain.PathDepth(prefix)}, nil
}

// Sub builds a handle over a leaf-anchored suffix.
// It fails with domain.ErrInvalidPath if no mode ends with suffix.
func (t *Tree) Sub(suffix string) (*Handle, error) {
	if suffix == "" || !t.IsSuffix(suffix) {
		return nil, &domain.InvalidPathError{Kind: domain.SubPath, Path: suffix}
	}
	return &Handle{tree: t, kind: domain.SubPath, path: suffix, depth: domain.PathDepth(suffix)}, nil
}

// Handle dispatches to Macro or Sub by kind. Any other kind fails with
// domain.ErrInvalidPath.
func (t *Tree) Handle(kind domain.PathKind, path string) (*Handle, error) {
	switch kind {
	case domain.MacroPath:
		return t.Macro(path)
	case domain.SubPath:
		return t.Sub(path)
	}
	return nil, &domain.InvalidPathError{Kind: kind, Path: path}
}

// MustMacro is like Macro but panics on error.
func (t *Tree) MustMacro(prefix string) *Handle {
	h, err := t.Macro(prefix)
	if err != nil {
		panic(fmt.Sprintf("modetree: Macro: %v", err))
	}
	return h
}

// MustSub is like Sub but panics on error.
func (t *Tree) MustSub(suffix string) *Handle {
	h, err := t.Sub(suffix)
	if err != nil {
		panic(fmt.Sprintf("modetree: Sub: %v", err))
	}
	return h
}

// Kind tells which end of a mode the handle is anchored to.
func (h *Handle) Kind() domain.PathKind { return h.kind }

// Path returns the partial path the handle was built from.
func (h *Handle) Path() string { return h.path }

// Depth is the number of keys in the partial path.
func (h *Handle) Depth() int { return h.depth }

// Match reports whether mode shares the handle's partial path.
// Strings that are not modes of the tree never match.
func (h *Handle) Match(mode domain.Mode) bool {
	if !h.tree.Has(mode) {
		return false
	}
	return h.matchPath(string(mode), h.path)
}

func (h *Handle) matchPath(mode, path string) bool {
	if mode == path {
		return true
	}
	if h.kind == domain.MacroPath {
		return strings.HasPrefix(mode, path+domain.Separator)
	}
	return strings.HasSuffix(mode, domain.Separator+path)
}

// Next replaces the handle's partial path in mode with replacement and keeps
// the rest. Replacement must have the same depth as the handle's path and the
// result must be a mode of the tree; otherwise domain.ErrInvalidTransition.
func (h *Handle) Next(replacement string, mode domain.Mode) (domain.Mode, error) {
	fail := func(reason string) (domain.Mode, error) {
		return "", &domain.InvalidTransitionError{
			Kind:        h.kind,
			Mode:        mode,
			Replacement: replacement,
			Reason:      reason,
		}
	}

	if !h.Match(mode) {
		return fail(fmt.Sprintf("mode does not match %s path %q", h.kind, h.path))
	}
	if d := domain.PathDepth(replacement); d != h.depth {
		return fail(fmt.Sprintf("replacement has %d keys, want %d", d, h.depth))
	}
	if !h.known(replacement) {
		return fail(fmt.Sprintf("no mode has %s path %q", h.kind, replacement))
	}

	s := string(mode)
	var next domain.Mode
	if h.kind == domain.MacroPath {
		next = domain.Mode(replacement + s[len(h.path):])
	} else {
		next = domain.Mode(s[:len(s)-len(h.path)] + replacement)
	}
	if !h.tree.Has(next) {
		return fail(fmt.Sprintf("%q is not a mode", next))
	}
	return next, nil
}

func (h *Handle) known(path string) bool {
	if h.kind == domain.MacroPath {
		return h.tree.IsPrefix(path)
	}
	return h.tree.IsSuffix(path)
}

// Alternatives lists every partial path that may replace the handle's path,
// that is every known path of the same depth anchored at the same end.
// Whether a given alternative fits a given mode is still checked by Next.
func (h *Handle) Alternatives() []string {
	var src []string
	if h.kind == domain.MacroPath {
		src = h.tree.prefixesByDepth[h.depth]
	} else {
		src = h.tree.suffixesByDepth[h.depth]
	}
	return append([]string(nil), src...)
}

// Targets lists the modes Next can reach from mode, in Alternatives order.
// It returns nil when mode does not match.
func (h *Handle) Targets(mode domain.Mode) []domain.Mode {
	if !h.Match(mode) {
		return nil
	}
	var out []domain.Mode
	for _, alt := range h.Alternatives() {
		if next, err := h.Next(alt, mode); err == nil {
			out = append(out, next)
		}
	}
	return out
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s(%s)", h.kind, h.path)
}
