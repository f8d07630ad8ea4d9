package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"ciphergenix/internal/analytics"
	"ciphergenix/internal/chat"
	"ciphergenix/internal/storage"
)

const livenessMessage = "CipherGenix backend is live"

type Options struct {
	Addr       string
	MCPEnabled bool
	Logger     *slog.Logger
}

// Server exposes the chat service over HTTP.
type Server struct {
	chat   *chat.Service
	opts   Options
	logger *slog.Logger
	server *http.Server
	now    func() time.Time
}

func New(svc *chat.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{chat: svc, opts: opts, logger: logger, now: time.Now}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type historyResponse struct {
	History     []storage.ChatEntry `json:"history"`
	ErrorDetail string              `json:"errorDetail,omitempty"`
}

type statsResponse struct {
	*analytics.DailyStats
	ErrorDetail string `json:"errorDetail,omitempty"`
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /chat/{$}", s.handleChat)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /chat/history", s.handleHistory)
	mux.HandleFunc("GET /chat/stats", s.handleStats)
	if s.opts.MCPEnabled {
		mux.Handle("/mcp", newMCPHandler(s.chat))
	}

	c := cors.New(cors.Options{
		AllowOriginFunc:  func(string) bool { return true },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(s.logRequests(mux))
}

// Start blocks serving HTTP until Shutdown is called. A Shutdown that lands
// before Start makes Start return nil without listening.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.opts.Addr, "mcp", s.opts.MCPEnabled)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": livenessMessage})
}

// handleChat always answers 200; failures are reported in the body.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, s.chat.Fail(chat.ValidationError(err)))
		return
	}
	writeJSON(w, http.StatusOK, s.chat.Generate(r.Context(), req.Prompt))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.chat.History()
	if err != nil {
		s.logger.Error("failed to read chat history", "error", err)
		writeJSON(w, http.StatusOK, historyResponse{History: []storage.ChatEntry{}, ErrorDetail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{History: entries})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	day := s.now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = d
	}
	entries, err := s.chat.History()
	if err != nil {
		s.logger.Error("failed to read chat history", "error", err)
		writeJSON(w, http.StatusOK, statsResponse{
			DailyStats:  analytics.AnalyzeDay(nil, day),
			ErrorDetail: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{DailyStats: analytics.AnalyzeDay(entries, day)})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses (MCP SSE) working through the wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
