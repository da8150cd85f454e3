package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scalux/scalux/pkg/adapters/memory"
	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/modetree"
	"github.com/scalux/scalux/pkg/session"
)

type testEngine struct {
	tree      *modetree.Tree
	selectors modetree.Selectors
}

func (e *testEngine) Tree() *modetree.Tree { return e.tree }

func (e *testEngine) Classify(mode domain.Mode) (map[string]string, error) {
	if _, err := e.tree.Parse(string(mode)); err != nil {
		return nil, err
	}
	return e.selectors.Eval(mode), nil
}

func newTestServer(t *testing.T, withSessions bool) *Server {
	t.Helper()
	tree := modetree.MustCompile(domain.Branch(
		domain.Key("userPlaying", domain.Leaves("piecePicking", "pieceDumping")),
		domain.Key("opponentPlaying", domain.Leaves("piecePicking", "pieceDumping")),
	))
	sels, err := tree.Options(modetree.ParseRefs(map[string][]string{"player": {"/"}}))
	require.NoError(t, err)

	eng := &testEngine{tree: tree, selectors: sels}
	if !withSessions {
		return NewServer(eng, nil, WithVersion("test"))
	}
	return NewServer(eng, session.NewManager(memory.NewStore(), session.Static(tree)), WithVersion("test"))
}

func TestHandlers_Stateless(t *testing.T) {
	s := newTestServer(t, false)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	modes, err := s.handleListModes(ctx, req, nil)
	require.NoError(t, err)
	assert.Len(t, modes.Modes, 4)

	match, err := s.handleMatch(ctx, req, handleArgs{Kind: "macro", Path: "userPlaying", Mode: "userPlaying/piecePicking"})
	require.NoError(t, err)
	assert.True(t, match.Match)
	assert.Equal(t, []string{"userPlaying", "opponentPlaying"}, match.Alternatives)

	next, err := s.handleNext(ctx, req, handleArgs{Kind: "sub", Path: "piecePicking", Replacement: "pieceDumping", Mode: "userPlaying/piecePicking"})
	require.NoError(t, err)
	assert.Equal(t, domain.Mode("userPlaying/pieceDumping"), next.Mode)

	classified, err := s.handleClassify(ctx, req, handleArgs{Mode: "opponentPlaying/pieceDumping"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"player": "opponentPlaying"}, classified.Options)
}

func TestHandlers_Errors(t *testing.T) {
	s := newTestServer(t, false)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	_, err := s.handleMatch(ctx, req, handleArgs{Kind: "macro", Path: "nonexistentKey", Mode: "userPlaying/piecePicking"})
	assert.ErrorIs(t, err, domain.ErrInvalidPath)

	_, err = s.handleNext(ctx, req, handleArgs{Kind: "macro", Path: "userPlaying", Replacement: "opponentPlaying", Mode: "opponentPlaying/piecePicking"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = s.handleClassify(ctx, req, handleArgs{Mode: "bogus"})
	assert.ErrorIs(t, err, domain.ErrUnknownMode)
}

func TestHandlers_Sessions(t *testing.T) {
	s := newTestServer(t, true)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	started, err := s.handleStart(ctx, req, sessionArgs{SessionID: "s1", Mode: "userPlaying/piecePicking"})
	require.NoError(t, err)
	assert.Equal(t, domain.Mode("userPlaying/piecePicking"), started.State.Mode)

	applied, err := s.handleApply(ctx, req, sessionArgs{SessionID: "s1", Kind: "macro", Path: "userPlaying", Replacement: "opponentPlaying"})
	require.NoError(t, err)
	assert.Equal(t, domain.Mode("opponentPlaying/piecePicking"), applied.State.Mode)

	applied, err = s.handleApply(ctx, req, sessionArgs{SessionID: "s1", Kind: "sub", Path: "piecePicking", Replacement: "pieceDumping"})
	require.NoError(t, err)
	assert.Equal(t, domain.Mode("opponentPlaying/pieceDumping"), applied.State.Mode)

	undone, err := s.handleUndo(ctx, req, sessionArgs{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, domain.Mode("opponentPlaying/piecePicking"), undone.State.Mode)

	got, err := s.handleGet(ctx, req, sessionArgs{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, undone.State.Mode, got.State.Mode)

	_, err = s.handleApply(ctx, req, sessionArgs{SessionID: "s1", Kind: "diagonal", Path: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidPath)

	_, err = s.handleGet(ctx, req, sessionArgs{SessionID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func newClient(t *testing.T, s *Server) *client.Client {
	t.Helper()
	c, err := client.NewInProcessClient(s.MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "scalux-test", Version: "1.0.0"}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)
	return c
}

func TestServer_InProcess(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, newTestServer(t, true))

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"list_modes", "match_mode", "next_mode", "classify_mode",
		"start_session", "get_session", "apply_handle", "undo",
	}, names)

	call := mcp.CallToolRequest{}
	call.Params.Name = "next_mode"
	call.Params.Arguments = map[string]any{
		"kind":        "macro",
		"path":        "userPlaying",
		"replacement": "opponentPlaying",
		"mode":        "userPlaying/pieceDumping",
	}
	res, err := c.CallTool(ctx, call)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.JSONEq(t, `{"mode":"opponentPlaying/pieceDumping"}`, text.Text)

	call.Params.Arguments = map[string]any{
		"kind":        "macro",
		"path":        "nonexistentKey",
		"replacement": "opponentPlaying",
		"mode":        "userPlaying/pieceDumping",
	}
	res, err = c.CallTool(ctx, call)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_TreeResource(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, newTestServer(t, false))

	req := mcp.ReadResourceRequest{}
	req.Params.URI = TreeURI
	res, err := c.ReadResource(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)

	text, ok := res.Contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	var mirror map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(text.Text), &mirror))
	assert.Equal(t, "userPlaying/piecePicking", mirror["userPlaying"]["piecePicking"])
}
