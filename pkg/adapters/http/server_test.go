package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
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

func newTestServer(t *testing.T, opts ...Option) (http.Handler, *testEngine) {
	t.Helper()
	f := newStreamingServer(t, opts...)
	return f.handler, f.engine
}

type streamingServer struct {
	handler  http.Handler
	engine   *testEngine
	sessions *session.Manager
	streams  *StreamManager
}

// newStreamingServer wires the session manager's transition hooks into the
// handler's stream manager, the way the serve command does.
func newStreamingServer(t *testing.T, opts ...Option) *streamingServer {
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

	eng := &testEngine{tree: tree, selectors: sels}
	streams := NewStreamManager(nil)
	sessions := session.NewManager(memory.NewStore(), session.Static(tree),
		session.WithLifecycleHooks(streams.Hooks()),
	)

	h, err := NewHandler(eng, sessions, append([]Option{WithStreams(streams)}, opts...)...)
	require.NoError(t, err)
	return &streamingServer{handler: h, engine: eng, sessions: sessions, streams: streams}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestSpec_CoversEveryRoute(t *testing.T) {
	doc, err := Spec()
	require.NoError(t, err)

	h, _ := newTestServer(t)
	routes, ok := h.(chi.Routes)
	require.True(t, ok)

	skip := map[string]bool{"/openapi.yaml": true, "/swagger": true}
	err = chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if route != "/" {
			route = strings.TrimSuffix(route, "/")
		}
		if skip[route] {
			return nil
		}
		item := doc.Paths.Find(route)
		if assert.NotNil(t, item, "route %s is not documented", route) {
			assert.NotNil(t, item.GetOperation(method), "%s %s is not documented", method, route)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestServer_HealthInfoAndSpec(t *testing.T) {
	h, _ := newTestServer(t, WithVersion("1.2.3\n"))

	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	info := decodeBody[map[string]any](t, do(t, h, http.MethodGet, "/info", nil))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "0.1.0", info["api_version"])
	assert.EqualValues(t, 4, info["modes"])

	w = do(t, h, http.MethodGet, "/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")
}

func TestServer_TreeQueries(t *testing.T) {
	h, _ := newTestServer(t)

	modes := decodeBody[map[string][]string](t, do(t, h, http.MethodGet, "/modes", nil))
	assert.Equal(t, []string{
		"userPlaying/piecePicking",
		"userPlaying/pieceDumping",
		"opponentPlaying/piecePicking",
		"opponentPlaying/pieceDumping",
	}, modes["modes"])

	tree := decodeBody[map[string]map[string]string](t, do(t, h, http.MethodGet, "/tree", nil))
	assert.Equal(t, "opponentPlaying/pieceDumping", tree["opponentPlaying"]["pieceDumping"])

	match := decodeBody[map[string]any](t, do(t, h, http.MethodPost, "/match", map[string]string{
		"kind": "macro", "path": "userPlaying", "mode": "userPlaying/piecePicking",
	}))
	assert.Equal(t, true, match["match"])

	match = decodeBody[map[string]any](t, do(t, h, http.MethodPost, "/match", map[string]string{
		"kind": "sub", "path": "piecePicking", "mode": "userPlaying/pieceDumping",
	}))
	assert.Equal(t, false, match["match"])

	next := decodeBody[map[string]string](t, do(t, h, http.MethodPost, "/next", map[string]string{
		"kind": "macro", "path": "userPlaying", "replacement": "opponentPlaying", "mode": "userPlaying/piecePicking",
	}))
	assert.Equal(t, "opponentPlaying/piecePicking", next["mode"])

	classify := decodeBody[map[string]any](t, do(t, h, http.MethodPost, "/classify", map[string]string{
		"mode": "opponentPlaying/pieceDumping",
	}))
	assert.Equal(t, map[string]any{"player": "opponentPlaying", "step": "pieceDumping"}, classify["options"])
}

func TestServer_ErrorMapping(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		reason string
	}{
		{"unknown macro path", http.MethodPost, "/match",
			map[string]string{"kind": "macro", "path": "nonexistentKey", "mode": "x"},
			http.StatusBadRequest, "invalid_path"},
		{"invalid transition", http.MethodPost, "/next",
			map[string]string{"kind": "macro", "path": "userPlaying", "replacement": "opponentPlaying", "mode": "opponentPlaying/piecePicking"},
			http.StatusUnprocessableEntity, "invalid_transition"},
		{"unknown mode", http.MethodPost, "/classify",
			map[string]string{"mode": "bogus"},
			http.StatusBadRequest, "unknown_mode"},
		{"kind outside enum", http.MethodPost, "/match",
			map[string]string{"kind": "sideways", "path": "userPlaying", "mode": "x"},
			http.StatusBadRequest, "invalid_request"},
		{"missing required field", http.MethodPost, "/classify",
			map[string]string{},
			http.StatusBadRequest, "invalid_request"},
		{"missing session", http.MethodGet, "/sessions/ghost", nil,
			http.StatusNotFound, "session_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decodeBody[errorResponse](t, w)
			assert.Equal(t, tt.reason, resp.Reason)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestServer_SessionLifecycle(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/sessions", map[string]string{"session_id": "s1", "mode": "userPlaying/piecePicking"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	state := decodeBody[domain.State](t, w)
	assert.Equal(t, domain.Mode("userPlaying/piecePicking"), state.Mode)

	w = do(t, h, http.MethodPost, "/sessions/s1/macro", map[string]string{"prefix": "userPlaying", "replacement": "opponentPlaying"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	change := decodeBody[domain.Change](t, w)
	assert.Equal(t, domain.Mode("opponentPlaying/piecePicking"), change.State.Mode)
	require.NotNil(t, change.Diff)
	assert.Equal(t, domain.Mode("userPlaying/piecePicking"), *change.Diff.From)

	w = do(t, h, http.MethodPost, "/sessions/s1/sub", map[string]string{"suffix": "piecePicking", "replacement": "pieceDumping"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.Mode("opponentPlaying/pieceDumping"), decodeBody[domain.Change](t, w).State.Mode)

	w = do(t, h, http.MethodPost, "/sessions/s1/undo", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.Mode("opponentPlaying/piecePicking"), decodeBody[domain.Change](t, w).State.Mode)

	w = do(t, h, http.MethodPost, "/sessions/s1/redo", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.Mode("opponentPlaying/pieceDumping"), decodeBody[domain.Change](t, w).State.Mode)

	w = do(t, h, http.MethodPost, "/sessions/s1/redo", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, "/sessions/s1/macro", map[string]string{"prefix": "userPlaying", "replacement": "opponentPlaying"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, http.MethodPost, "/sessions/s1/set", map[string]string{"mode": "userPlaying/pieceDumping"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	list := decodeBody[map[string][]string](t, do(t, h, http.MethodGet, "/sessions", nil))
	assert.Equal(t, []string{"s1"}, list["sessions"])

	state = decodeBody[domain.State](t, do(t, h, http.MethodGet, "/sessions/s1", nil))
	assert.Equal(t, domain.Mode("userPlaying/pieceDumping"), state.Mode)
	assert.Len(t, state.Past, 3)

	w = do(t, h, http.MethodDelete, "/sessions/s1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodGet, "/sessions/s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_StartGeneratesSessionID(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/sessions", map[string]string{"mode": "userPlaying/piecePicking"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	state := decodeBody[domain.State](t, w)
	assert.Len(t, state.SessionID, 36)

	w = do(t, h, http.MethodPost, "/sessions", map[string]string{"mode": "userPlaying"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_MetricsAndCORS(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("scalux_modes 4\n"))
	})
	h, _ := newTestServer(t, WithMetrics(metrics))

	w := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scalux_modes")

	w = do(t, h, http.MethodOptions, "/sessions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// readEvent returns the next "data:" payload of an SSE stream.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
			return data
		}
	}
}

func subscribe(t *testing.T, ctx context.Context, url string) *bufio.Reader {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	require.Equal(t, "connected", readEvent(t, r))
	return r
}

func TestSubscribeEvents_SessionDiff(t *testing.T) {
	f := newStreamingServer(t)
	h, streams := f.handler, f.streams
	srv := httptest.NewServer(h)
	defer srv.Close()

	w := do(t, h, http.MethodPost, "/sessions", map[string]string{"session_id": "s1", "mode": "userPlaying/piecePicking"})
	require.Equal(t, http.StatusCreated, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events := subscribe(t, ctx, srv.URL+"/events?session_id=s1&watch=mode")
	assert.Equal(t, 1, streams.Subscribers("s1"))

	w = do(t, h, http.MethodPost, "/sessions/s1/set", map[string]string{"mode": "opponentPlaying/piecePicking"})
	require.Equal(t, http.StatusOK, w.Code)

	var diff domain.StateDiff
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, events)), &diff))
	assert.Equal(t, "s1", diff.SessionID)
	require.NotNil(t, diff.Mode)
	assert.Equal(t, domain.Mode("opponentPlaying/piecePicking"), *diff.Mode)
}

func TestSubscribeEvents_ChangeOutsideHTTP(t *testing.T) {
	f := newStreamingServer(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events := subscribe(t, ctx, srv.URL+"/events?session_id=s2")

	_, err := f.sessions.Start(ctx, "s2", "userPlaying/piecePicking")
	require.NoError(t, err)
	_, err = f.sessions.ApplyMacro(ctx, "s2", "userPlaying", "opponentPlaying")
	require.NoError(t, err)

	var started, moved domain.StateDiff
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, events)), &started))
	require.NotNil(t, started.Mode)
	assert.Equal(t, domain.Mode("userPlaying/piecePicking"), *started.Mode)

	require.NoError(t, json.Unmarshal([]byte(readEvent(t, events)), &moved))
	require.NotNil(t, moved.Mode)
	assert.Equal(t, domain.Mode("opponentPlaying/piecePicking"), *moved.Mode)
}

func TestSubscribeEvents_Reload(t *testing.T) {
	f := newStreamingServer(t)
	h, eng, streams := f.handler, f.engine, f.streams
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events := subscribe(t, ctx, srv.URL+"/events")

	streams.PublishReload(eng.tree)
	assert.JSONEq(t, `{"event":"reload","modes":4}`, readEvent(t, events))
}

func TestKeepDiff(t *testing.T) {
	mode := domain.Mode("a/b")
	yes := true
	modeOnly, _ := json.Marshal(domain.StateDiff{SessionID: "s", Mode: &mode})
	historyOnly, _ := json.Marshal(domain.StateDiff{SessionID: "s", CanRedo: &yes})

	assert.True(t, keepDiff(string(modeOnly), []string{"mode"}))
	assert.False(t, keepDiff(string(modeOnly), []string{"history"}))
	assert.True(t, keepDiff(string(historyOnly), []string{"history"}))
	assert.False(t, keepDiff(string(historyOnly), []string{"mode"}))
	assert.True(t, keepDiff("not json", []string{"mode"}))
}
