package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/blackmichael/creator-tasks/internal/config"
	"github.com/blackmichael/creator-tasks/internal/domain"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP server that exposes the task engine.
type Server struct {
	cfg         *config.Config
	taskService *domain.TaskService
	logger      *slog.Logger
	httpServer  *http.Server
}

// NewServer creates a new HTTP server with the given task service.
func NewServer(cfg *config.Config, taskService *domain.TaskService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		taskService: taskService,
		logger:      logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/users/{userID}/assign", s.handleAssign)
	mux.HandleFunc("POST /v1/users/{userID}/accounts/{accountID}/tasks/{articleID}/claim", s.handleClaim)
	mux.HandleFunc("POST /v1/users/{userID}/accounts/{accountID}/completions", s.handleCompletion)
	mux.HandleFunc("POST /v1/admin/assign-all", s.handleAssignAll)
	mux.HandleFunc("GET /v1/admin/expired-tasks", s.handleListExpired)
	mux.HandleFunc("POST /v1/admin/sweep", s.handleSweep)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, including request logging.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

// writeDomainError maps an engine error to its HTTP status. Dependency
// failures are logged and hidden from the caller.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		writeError(w, http.StatusBadRequest, "InvalidRequest", domain.ReasonOf(err))
	case domain.KindNotFound:
		writeError(w, http.StatusNotFound, "NotFound", domain.ReasonOf(err))
	case domain.KindForbidden:
		writeError(w, http.StatusForbidden, "Forbidden", domain.ReasonOf(err))
	case domain.KindConflict:
		s.logger.Warn("write conflict", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusConflict, "Conflict", "the document was modified concurrently, retry the request")
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
