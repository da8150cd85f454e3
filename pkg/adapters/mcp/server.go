package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/scalux/scalux/internal/logging"
	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/ports"
)

// TreeURI is the resource holding the JSON mirror of the current tree.
const TreeURI = "scalux://tree"

// ModesResult lists every mode of the tree.
type ModesResult struct {
	Modes []domain.Mode `json:"modes" jsonschema_description:"Every mode in definition order"`
}

// MatchResult tells whether a handle matches a mode.
type MatchResult struct {
	Match        bool     `json:"match" jsonschema_description:"True when the mode carries the partial path"`
	Alternatives []string `json:"alternatives" jsonschema_description:"Valid replacements for the partial path"`
}

// ModeResult carries a single mode.
type ModeResult struct {
	Mode domain.Mode `json:"mode" jsonschema_description:"The resulting mode"`
}

// ClassifyResult maps option labels to the key the mode selects.
type ClassifyResult struct {
	Mode    domain.Mode       `json:"mode"`
	Options map[string]string `json:"options" jsonschema_description:"Option label to selected child key"`
}

type handleArgs struct {
	Kind        string `json:"kind"`
	Path        string `json:"path"`
	Replacement string `json:"replacement"`
	Mode        string `json:"mode"`
}

type sessionArgs struct {
	SessionID   string `json:"session_id"`
	Kind        string `json:"kind"`
	Mode        string `json:"mode"`
	Path        string `json:"path"`
	Replacement string `json:"replacement"`
}

// Server exposes a mode tree, and optionally its sessions, as an MCP server.
type Server struct {
	engine    ports.ModeEngine
	sessions  ports.SessionService
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the server.
type Option func(*options)

type options struct {
	version string
	logger  *slog.Logger
}

// WithVersion sets the version announced to clients.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithLogger sets the logger used for tool failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewServer creates the MCP server. Session tools are registered only when
// sessions is not nil.
func NewServer(engine ports.ModeEngine, sessions ports.SessionService, opts ...Option) *Server {
	o := options{version: "dev", logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		engine:   engine,
		sessions: sessions,
		logger:   o.logger,
		mcpServer: server.NewMCPServer("scalux-mcp", strings.TrimSpace(o.version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	if sessions != nil {
		s.registerSessionTools()
	}
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func kindParam() mcp.ToolOption {
	return mcp.WithString("kind", mcp.Required(), mcp.Enum("macro", "sub"),
		mcp.Description("macro anchors the path at the root, sub at the leaf"))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_modes",
		mcp.WithDescription("List every mode of the tree, as slash separated key paths."),
		mcp.WithOutputSchema[ModesResult](),
	), mcp.NewStructuredToolHandler(s.handleListModes))

	s.mcpServer.AddTool(mcp.NewTool("match_mode",
		mcp.WithDescription("Check whether a mode starts (macro) or ends (sub) with a partial path."),
		kindParam(),
		mcp.WithString("path", mcp.Required(), mcp.Description("Partial path, e.g. userPlaying")),
		mcp.WithString("mode", mcp.Required(), mcp.Description("Full mode to test")),
		mcp.WithOutputSchema[MatchResult](),
	), mcp.NewStructuredToolHandler(s.handleMatch))

	s.mcpServer.AddTool(mcp.NewTool("next_mode",
		mcp.WithDescription("Rewrite the matched end of a mode with a replacement path of the same depth."),
		kindParam(),
		mcp.WithString("path", mcp.Required(), mcp.Description("Partial path the mode must match")),
		mcp.WithString("replacement", mcp.Required(), mcp.Description("Replacement partial path")),
		mcp.WithString("mode", mcp.Required(), mcp.Description("Current mode")),
		mcp.WithOutputSchema[ModeResult](),
	), mcp.NewStructuredToolHandler(s.handleNext))

	s.mcpServer.AddTool(mcp.NewTool("classify_mode",
		mcp.WithDescription("Evaluate every configured option against a mode."),
		mcp.WithString("mode", mcp.Required(), mcp.Description("Mode to classify")),
		mcp.WithOutputSchema[ClassifyResult](),
	), mcp.NewStructuredToolHandler(s.handleClassify))
}

func (s *Server) registerSessionTools() {
	sessionID := mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier"))

	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Create or reset a session at the given mode."),
		sessionID,
		mcp.WithString("mode", mcp.Required(), mcp.Description("Initial mode")),
		mcp.WithOutputSchema[domain.Change](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Read the current mode and history of a session."),
		sessionID,
		mcp.WithOutputSchema[domain.Change](),
	), mcp.NewStructuredToolHandler(s.handleGet))

	s.mcpServer.AddTool(mcp.NewTool("apply_handle",
		mcp.WithDescription("Apply a macro or sub rewrite to the current mode of a session."),
		sessionID,
		kindParam(),
		mcp.WithString("path", mcp.Required(), mcp.Description("Partial path the current mode must match")),
		mcp.WithString("replacement", mcp.Required(), mcp.Description("Replacement partial path")),
		mcp.WithOutputSchema[domain.Change](),
	), mcp.NewStructuredToolHandler(s.handleApply))

	s.mcpServer.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Step a session back to its previous mode."),
		sessionID,
		mcp.WithOutputSchema[domain.Change](),
	), mcp.NewStructuredToolHandler(s.handleUndo))
}

func (s *Server) handleListModes(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ModesResult, error) {
	return ModesResult{Modes: s.engine.Tree().Modes()}, nil
}

func (s *Server) handleMatch(ctx context.Context, request mcp.CallToolRequest, args handleArgs) (MatchResult, error) {
	h, err := s.engine.Tree().Handle(domain.PathKind(args.Kind), args.Path)
	if err != nil {
		return MatchResult{}, err
	}
	return MatchResult{Match: h.Match(domain.Mode(args.Mode)), Alternatives: h.Alternatives()}, nil
}

func (s *Server) handleNext(ctx context.Context, request mcp.CallToolRequest, args handleArgs) (ModeResult, error) {
	h, err := s.engine.Tree().Handle(domain.PathKind(args.Kind), args.Path)
	if err != nil {
		return ModeResult{}, err
	}
	next, err := h.Next(args.Replacement, domain.Mode(args.Mode))
	if err != nil {
		s.logger.Warn("MCP next_mode rejected", "mode", args.Mode, "error", err)
		return ModeResult{}, err
	}
	return ModeResult{Mode: next}, nil
}

func (s *Server) handleClassify(ctx context.Context, request mcp.CallToolRequest, args handleArgs) (ClassifyResult, error) {
	opts, err := s.engine.Classify(domain.Mode(args.Mode))
	if err != nil {
		return ClassifyResult{}, err
	}
	return ClassifyResult{Mode: domain.Mode(args.Mode), Options: opts}, nil
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args sessionArgs) (domain.Change, error) {
	state, err := s.sessions.Start(ctx, args.SessionID, domain.Mode(args.Mode))
	if err != nil {
		return domain.Change{}, err
	}
	return domain.Change{State: state, Diff: domain.Diff(nil, state)}, nil
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest, args sessionArgs) (domain.Change, error) {
	state, err := s.sessions.Load(ctx, args.SessionID)
	if err != nil {
		return domain.Change{}, err
	}
	return domain.Change{State: state}, nil
}

func (s *Server) handleApply(ctx context.Context, request mcp.CallToolRequest, args sessionArgs) (domain.Change, error) {
	var (
		change *domain.Change
		err    error
	)
	sessionID := args.SessionID
	switch domain.PathKind(args.Kind) {
	case domain.MacroPath:
		change, err = s.sessions.ApplyMacro(ctx, sessionID, args.Path, args.Replacement)
	case domain.SubPath:
		change, err = s.sessions.ApplySub(ctx, sessionID, args.Path, args.Replacement)
	default:
		err = &domain.InvalidPathError{Kind: domain.PathKind(args.Kind), Path: args.Path}
	}
	if err != nil {
		s.logger.Warn("MCP apply_handle rejected", "session_id", sessionID, "error", err)
		return domain.Change{}, err
	}
	return *change, nil
}

func (s *Server) handleUndo(ctx context.Context, request mcp.CallToolRequest, args sessionArgs) (domain.Change, error) {
	change, err := s.sessions.Undo(ctx, args.SessionID)
	if err != nil {
		return domain.Change{}, err
	}
	return *change, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(TreeURI, "Current mode tree",
		mcp.WithResourceDescription("Nested mirror of the tree; leaves hold their full mode."),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.engine.Tree().Mirror())
		if err != nil {
			return nil, fmt.Errorf("failed to encode tree: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      TreeURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
