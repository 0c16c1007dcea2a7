// Package api provides the HopeShot REST API server.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/RobinCoderZhao/hopeshot/internal/news/pipeline"
	"github.com/RobinCoderZhao/hopeshot/internal/user"
)

// Version is reported by the root and health endpoints.
const Version = "0.3.0"

// Options configures a Server.
type Options struct {
	Pipeline   *pipeline.Pipeline
	Users      *user.Store
	JWTSecret  string
	TokenTTL   time.Duration
	CORSOrigin string
}

// Server holds the dependencies for the API.
type Server struct {
	pipeline   *pipeline.Pipeline
	users      *user.Store
	jwtSecret  []byte
	tokenTTL   time.Duration
	corsOrigin string
	now        func() time.Time
	logger     *slog.Logger
}

// NewServer creates a new API Server instance.
func NewServer(opts Options) *Server {
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Server{
		pipeline:   opts.Pipeline,
		users:      opts.Users,
		jwtSecret:  []byte(opts.JWTSecret),
		tokenTTL:   ttl,
		corsOrigin: opts.CORSOrigin,
		now:        time.Now,
		logger:     slog.Default(),
	}
}

// Routes returns the configured http.Handler for the API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot())
	mux.HandleFunc("GET /health", s.handleHealth())

	// Auth
	mux.HandleFunc("POST /api/auth/login", s.handleLogin())
	mux.Handle("GET /api/auth/me", s.requireAuthHandler(http.HandlerFunc(s.handleMe())))

	// News
	mux.HandleFunc("GET /api/news", s.handleNews())
	mux.HandleFunc("GET /api/news/{source}", s.handleSourceNews())
	mux.HandleFunc("GET /api/sources", s.handleSources())
	mux.HandleFunc("GET /api/sources/test", s.handleTestSources())

	// Stored articles
	mux.HandleFunc("GET /api/articles", s.handleArticles())
	mux.HandleFunc("GET /api/stats", s.handleStats())

	return s.requestID(s.cors(mux))
}

// requestID tags every request with an X-Request-ID, reusing the caller's.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served", "request_id", id, "method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

// cors allows the configured browser origin, the frontend dev server by default.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Helpers ---

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"status": "error", "error": message})
}
