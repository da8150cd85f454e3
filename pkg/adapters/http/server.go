package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/scalux/scalux/internal/logging"
	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/observability"
	"github.com/scalux/scalux/pkg/ports"
)

const maxBodyBytes = 1 << 20

// Server serves the mode tree and its sessions over HTTP.
type Server struct {
	Engine   ports.ModeEngine
	Sessions ports.SessionService
	Streams  *StreamManager

	version string
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithStreams shares a StreamManager, so reload and transition hooks wired
// elsewhere (StreamManager.PublishReload, StreamManager.Hooks) reach SSE
// clients.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithVersion sets the application version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates the HTTP handler. It fails only when the embedded
// OpenAPI document is invalid.
func NewHandler(engine ports.ModeEngine, sessions ports.SessionService, opts ...Option) (http.Handler, error) {
	s := &Server{
		Engine:   engine,
		Sessions: sessions,
		version:  "dev",
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	router, err := newRequestRouter()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)
	r.Use(s.validateRequests(router))

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/modes", s.ListModes)
	r.Get("/tree", s.GetTree)
	r.Post("/match", s.MatchMode)
	r.Post("/next", s.NextMode)
	r.Post("/classify", s.ClassifyMode)
	r.Get("/events", s.SubscribeEvents)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.StartSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/set", s.SetMode)
			r.Post("/macro", s.ApplyMacro)
			r.Post("/sub", s.ApplySub)
			r.Post("/undo", s.Undo)
			r.Post("/redo", s.Redo)
		})
	})

	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Scalux API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

type matchRequest struct {
	Kind        string `json:"kind"`
	Path        string `json:"path"`
	Replacement string `json:"replacement"`
	Mode        string `json:"mode"`
}

type modeRequest struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

type rewriteRequest struct {
	Prefix      string `json:"prefix"`
	Suffix      string `json:"suffix"`
	Replacement string `json:"replacement"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := Spec(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"app":         "scalux-http",
		"version":     strings.TrimSpace(s.version),
		"api_version": apiVersion,
		"modes":       s.Engine.Tree().Len(),
	})
}

// ListModes handles GET /modes.
func (s *Server) ListModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.Mode{"modes": s.Engine.Tree().Modes()})
}

// GetTree handles GET /tree.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Tree().Mirror())
}

// MatchMode handles POST /match.
func (s *Server) MatchMode(w http.ResponseWriter, r *http.Request) {
	var body matchRequest
	if !s.decode(w, r, &body) {
		return
	}
	h, err := s.Engine.Tree().Handle(domain.PathKind(body.Kind), body.Path)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"match":        h.Match(domain.Mode(body.Mode)),
		"alternatives": h.Alternatives(),
	})
}

// NextMode handles POST /next.
func (s *Server) NextMode(w http.ResponseWriter, r *http.Request) {
	var body matchRequest
	if !s.decode(w, r, &body) {
		return
	}
	h, err := s.Engine.Tree().Handle(domain.PathKind(body.Kind), body.Path)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	next, err := h.Next(body.Replacement, domain.Mode(body.Mode))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.Mode{"mode": next})
}

// ClassifyMode handles POST /classify.
func (s *Server) ClassifyMode(w http.ResponseWriter, r *http.Request) {
	var body modeRequest
	if !s.decode(w, r, &body) {
		return
	}
	options, err := s.Engine.Classify(domain.Mode(body.Mode))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": body.Mode, "options": options})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// StartSession handles POST /sessions. A missing session_id gets a random one.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body modeRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.SessionID == "" {
		body.SessionID = uuid.NewString()
	}
	state, err := s.Sessions.Start(r.Context(), body.SessionID, domain.Mode(body.Mode))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.Sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetMode handles POST /sessions/{id}/set.
func (s *Server) SetMode(w http.ResponseWriter, r *http.Request) {
	var body modeRequest
	if !s.decode(w, r, &body) {
		return
	}
	change, err := s.Sessions.Set(r.Context(), chi.URLParam(r, "id"), domain.Mode(body.Mode))
	s.respondChange(w, r, change, err)
}

// ApplyMacro handles POST /sessions/{id}/macro.
func (s *Server) ApplyMacro(w http.ResponseWriter, r *http.Request) {
	var body rewriteRequest
	if !s.decode(w, r, &body) {
		return
	}
	change, err := s.Sessions.ApplyMacro(r.Context(), chi.URLParam(r, "id"), body.Prefix, body.Replacement)
	s.respondChange(w, r, change, err)
}

// ApplySub handles POST /sessions/{id}/sub.
func (s *Server) ApplySub(w http.ResponseWriter, r *http.Request) {
	var body rewriteRequest
	if !s.decode(w, r, &body) {
		return
	}
	change, err := s.Sessions.ApplySub(r.Context(), chi.URLParam(r, "id"), body.Suffix, body.Replacement)
	s.respondChange(w, r, change, err)
}

// Undo handles POST /sessions/{id}/undo.
func (s *Server) Undo(w http.ResponseWriter, r *http.Request) {
	change, err := s.Sessions.Undo(r.Context(), chi.URLParam(r, "id"))
	s.respondChange(w, r, change, err)
}

// Redo handles POST /sessions/{id}/redo.
func (s *Server) Redo(w http.ResponseWriter, r *http.Request) {
	change, err := s.Sessions.Redo(r.Context(), chi.URLParam(r, "id"))
	s.respondChange(w, r, change, err)
}

func (s *Server) respondChange(w http.ResponseWriter, r *http.Request, change *domain.Change, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Debug("session changed", "session_id", change.State.SessionID, "mode", change.State.Mode)
	writeJSON(w, http.StatusOK, change)
}

// SubscribeEvents handles GET /events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	topic := r.URL.Query().Get("session_id")
	var watch []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			watch = append(watch, strings.TrimSpace(f))
		}
	}

	ch, cancel := s.Streams.Subscribe(topic)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if topic != ReloadTopic && len(watch) > 0 && !keepDiff(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// keepDiff reports whether the encoded diff touches one of the watched fields.
func keepDiff(msg string, watch []string) bool {
	var diff domain.StateDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range watch {
		switch field {
		case "mode":
			if diff.Mode != nil {
				return true
			}
		case "history":
			if diff.Past != nil || diff.CanUndo != nil || diff.CanRedo != nil {
				return true
			}
		}
	}
	return false
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Reason: "invalid_request"})
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Reason: observability.Reason(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidPath), errors.Is(err, domain.ErrUnknownMode):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNothingToUndo), errors.Is(err, domain.ErrNothingToRedo):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
