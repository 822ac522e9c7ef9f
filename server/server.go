package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/petal-labs/taskgate/gateway"
)

// DefaultMaxBody caps request bodies when ServerConfig.MaxBody is unset.
const DefaultMaxBody = 1 << 20

// Registry is the dispatch table surface the HTTP wrapper uses.
type Registry interface {
	Names() []string
	Lookup(name string) (mcp.Tool, bool)
	Invoke(ctx context.Context, name string, args map[string]any) (gateway.Result, error)
}

// ServerConfig configures a Server instance.
type ServerConfig struct {
	Registry   Registry
	BackendURL string
	// MCP is mounted at /mcp when non-nil.
	MCP         http.Handler
	CORSOrigins []string
	MaxBody     int64
	Logger      *slog.Logger
}

// Server is the taskgate HTTP wrapper.
type Server struct {
	registry    Registry
	backendURL  string
	mcp         http.Handler
	corsOrigins []string
	allowAll    bool
	maxBody     int64
	logger      *slog.Logger
}

// NewServer creates a new Server with the given configuration.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	origins := make([]string, 0, len(cfg.CORSOrigins))
	allowAll := len(cfg.CORSOrigins) == 0
	for _, origin := range cfg.CORSOrigins {
		clean := strings.TrimRight(strings.TrimSpace(origin), "/")
		if clean == "*" {
			allowAll = true
		}
		if clean != "" {
			origins = append(origins, clean)
		}
	}
	return &Server{
		registry:    cfg.Registry,
		backendURL:  cfg.BackendURL,
		mcp:         cfg.MCP,
		corsOrigins: origins,
		allowAll:    allowAll,
		maxBody:     maxBody,
		logger:      logger,
	}
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)

	return handler
}

// RegisterRoutes mounts the wrapper routes onto an existing mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleListTools)
	mux.HandleFunc("GET /tools/{name}", s.handleDescribeTool)
	mux.HandleFunc("POST /tools/{name}", s.handleCallTool)
	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
		mux.Handle("/mcp/", s.mcp)
	}
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case s.allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && s.originAllowed(origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	clean := strings.TrimRight(origin, "/")
	for _, allowed := range s.corsOrigins {
		if strings.EqualFold(allowed, clean) {
			return true
		}
	}
	return false
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, gateway.ErrorPayload(message))
}
