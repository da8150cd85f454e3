package tui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/modetree"
)

func gameTree(t *testing.T) (*modetree.Tree, modetree.Selectors) {
	t.Helper()
	tree := modetree.MustCompile(domain.Branch(
		domain.Key("userPlaying", domain.Leaves("piecePicking", "pieceDumping")),
		domain.Key("opponentPlaying", domain.Leaves("piecePicking", "pieceDumping")),
	))
	sels, err := tree.Options(modetree.ParseRefs(map[string][]string{
		"player": {"/"},
		"step":   {"userPlaying", "opponentPlaying"},
	}))
	require.NoError(t, err)
	return tree, sels
}

func TestModesMarkdown(t *testing.T) {
	tree, sels := gameTree(t)

	want := "# Modes (4)\n\n" +
		"| Mode | player | step |\n" +
		"| --- | --- | --- |\n" +
		"| `userPlaying/piecePicking` | userPlaying | piecePicking |\n" +
		"| **`userPlaying/pieceDumping`** | userPlaying | pieceDumping |\n" +
		"| `opponentPlaying/piecePicking` | opponentPlaying | piecePicking |\n" +
		"| `opponentPlaying/pieceDumping` | opponentPlaying | pieceDumping |\n"
	assert.Equal(t, want, ModesMarkdown(tree, sels, "userPlaying/pieceDumping"))
}

func TestModesMarkdown_NoOptions(t *testing.T) {
	tree, _ := gameTree(t)
	out := ModesMarkdown(tree, nil, "")
	assert.Contains(t, out, "| Mode |\n| --- |\n")
}

func TestStateMarkdown(t *testing.T) {
	s := &domain.State{
		SessionID: "s1",
		Mode:      "a/b",
		Past:      []domain.Mode{"a/c", "a/d"},
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	want := "## Session `s1`\n\n" +
		"- **Mode:** `a/b`\n" +
		"- **Undo:** 2\n" +
		"- **Redo:** 0\n" +
		"- **Updated:** 2026-01-02 03:04:05 UTC\n"
	assert.Equal(t, want, StateMarkdown(s))
}

func TestRendererFor_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf))
	assert.Equal(t, 0, Width(&buf))

	render, err := RendererFor(&buf)
	require.NoError(t, err)
	out, err := render("# Modes\n\n- `userPlaying/piecePicking`\n")
	require.NoError(t, err)
	assert.Contains(t, out, "userPlaying/piecePicking")
}

func TestPrintBanner_PlainWriter(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|___/")
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Equal(t, "bold", Highlight(&buf, "bold"))
}
