package tui

import (
	"fmt"
	"strings"

	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/modetree"
)

// ModesMarkdown lists every mode of tree as a markdown table, with one
// column per option label. The current mode, if any, is bold.
func ModesMarkdown(tree *modetree.Tree, selectors modetree.Selectors, current domain.Mode) string {
	labels := selectors.Labels()

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Modes (%d)\n\n", tree.Len())
	sb.WriteString("| Mode |")
	for _, l := range labels {
		fmt.Fprintf(&sb, " %s |", l)
	}
	sb.WriteString("\n| --- |")
	sb.WriteString(strings.Repeat(" --- |", len(labels)))
	sb.WriteString("\n")

	for _, m := range tree.Modes() {
		name := "`" + string(m) + "`"
		if m == current {
			name = "**" + name + "**"
		}
		fmt.Fprintf(&sb, "| %s |", name)
		for _, l := range labels {
			key, _ := selectors[l].Select(m)
			fmt.Fprintf(&sb, " %s |", key)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// StateMarkdown summarizes a session.
func StateMarkdown(s *domain.State) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Session `%s`\n\n", s.SessionID)
	fmt.Fprintf(&sb, "- **Mode:** `%s`\n", s.Mode)
	fmt.Fprintf(&sb, "- **Undo:** %d\n", len(s.Past))
	fmt.Fprintf(&sb, "- **Redo:** %d\n", len(s.Future))
	if !s.UpdatedAt.IsZero() {
		fmt.Fprintf(&sb, "- **Updated:** %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	return sb.String()
}
