package graph

import (
	"fmt"
	"strings"

	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/modetree"
)

// GraphOverlay contains session data to visualize on the tree.
type GraphOverlay struct {
	// Visited modes are highlighted as previously occupied.
	Visited []domain.Mode
	// Current is the active mode. Its ancestors are highlighted too.
	Current domain.Mode
}

// OverlayFromState builds an overlay from a session state.
func OverlayFromState(s *domain.State) *GraphOverlay {
	if s == nil {
		return nil
	}
	return &GraphOverlay{Visited: s.Past, Current: s.Mode}
}

// GenerateMermaid produces a Mermaid flowchart of the tree:
// - Root: ((Circle))
// - Internal node: (Rounded)
// - Leaf (mode): [Rectangle]
// Node IDs are assigned in depth-first definition order, so output is stable.
func GenerateMermaid(tree *modetree.Tree, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	ids := make(map[modetree.NodeRef]string)
	var emit func(m *modetree.Mirror, label, parent string)
	emit = func(m *modetree.Mirror, label, parent string) {
		id := fmt.Sprintf("n%d", len(ids))
		ids[m.Ref()] = id

		opener, closer := "(", ")"
		switch {
		case parent == "":
			opener, closer = "((", "))"
		case m.IsLeaf():
			opener, closer = "[", "]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, escapeLabel(label), closer)
		if parent != "" {
			fmt.Fprintf(&sb, "    %s --> %s\n", parent, id)
		}
		for _, k := range m.Keys() {
			emit(m.Child(k), k, id)
		}
	}
	emit(tree.Mirror(), "root", "")

	if overlay == nil {
		return sb.String()
	}

	sb.WriteString("\n    %% Overlay Styles\n")
	// Force black text (color:#000) so labels stay readable on light fills in dark themes.
	sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef active fill:#fff9c4,stroke:#fbc02d,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

	seen := make(map[string]bool)
	for _, m := range overlay.Visited {
		id, ok := ids[modetree.NodeRef(m)]
		if !ok || m == overlay.Current || seen[id] {
			continue
		}
		seen[id] = true
		fmt.Fprintf(&sb, "    class %s visited;\n", id)
	}

	if !tree.Has(overlay.Current) {
		return sb.String()
	}
	keys := overlay.Current.Keys()
	fmt.Fprintf(&sb, "    class %s active;\n", ids[domain.RootRef])
	for i := 1; i < len(keys); i++ {
		fmt.Fprintf(&sb, "    class %s active;\n", ids[modetree.NodeRef(domain.JoinPath(keys[:i]...))])
	}
	fmt.Fprintf(&sb, "    class %s current;\n", ids[modetree.NodeRef(overlay.Current)])

	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
