package http

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/liuwenjie/api-mock-server/internal/domain/replay"
	"github.com/liuwenjie/api-mock-server/internal/domain/trace"
	"github.com/liuwenjie/api-mock-server/internal/infrastructure/ports"
	"github.com/liuwenjie/api-mock-server/internal/infrastructure/services"
	"github.com/liuwenjie/api-mock-server/internal/infrastructure/usecases"
)

const maxBodySize = 10 << 20 // 10 MB

// Server is the HTTP front of the mock. All mock traffic funnels through a
// catch-all handler; recorded paths are arbitrary so no per-path routes are
// registered.
type Server struct {
	router      atomic.Pointer[chi.Mux]
	index       atomic.Pointer[services.SignatureIndex]
	rebuildMu   sync.Mutex
	handleReqUC *usecases.HandleRequestUseCase
	loadUC      *usecases.LoadArchiveUseCase
	traceBuf    *trace.RingBuffer
	logger      ports.Logger
}

// NewServer creates a new Server.
func NewServer(
	handleReqUC *usecases.HandleRequestUseCase,
	loadUC *usecases.LoadArchiveUseCase,
	traceBuf *trace.RingBuffer,
	logger ports.Logger,
) *Server {
	return &Server{
		handleReqUC: handleReqUC,
		loadUC:      loadUC,
		traceBuf:    traceBuf,
		logger:      logger,
	}
}

// BuildRouter creates a chi.Mux with admin routes and the mock catch-all.
func (s *Server) BuildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/__admin", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/entries", s.handleListEndpoints)
		r.Get("/trace", s.handleGetTrace)
		r.Post("/reload", s.handleReload)
	})

	// Everything that is not an admin route is mock traffic.
	r.NotFound(s.mockHandler)
	r.MethodNotAllowed(s.mockHandler)

	return r
}

// Rebuild atomically swaps in a freshly built index. Serialized via mutex.
// Each index is write-once; readers never observe a partially built one.
func (s *Server) Rebuild(idx *services.SignatureIndex) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	r := s.BuildRouter()
	s.index.Store(idx)
	s.router.Store(r)
	s.logger.Info("index rebuilt", "signatures", idx.Len())
}

// ServeHTTP implements http.Handler using the atomic router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router := s.router.Load()
	if router == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	router.ServeHTTP(w, r)
}

func (s *Server) mockHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("request received", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery, "remote", r.RemoteAddr)

	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	idx := s.index.Load()
	if idx == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	req := &usecases.IncomingRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Body:     string(body),
		ClientIP: clientIP(r),
	}

	result := s.handleReqUC.Execute(r.Context(), req, idx)

	if result.RateLimited {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		writeJSON(w, map[string]string{
			"error":   "rate_limited",
			"message": "Too many requests",
		})
		return
	}

	s.writeReplay(w, result.Replay)
}

// writeReplay copies a materialized replay onto the live response. Add (not
// Set) preserves recorded duplicate headers.
func (s *Server) writeReplay(w http.ResponseWriter, rep replay.Replay) {
	for _, h := range rep.Headers {
		w.Header().Add(h.Name, h.Value)
	}
	w.WriteHeader(rep.Status)
	if len(rep.Body) == 0 {
		return
	}
	if _, err := w.Write(rep.Body); err != nil {
		s.logger.Debug("failed to write response body", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	entries := 0
	if idx := s.index.Load(); idx != nil {
		entries = idx.Len()
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"status":  "ok",
		"entries": entries,
	})
}

func (s *Server) handleListEndpoints(w http.ResponseWriter, _ *http.Request) {
	idx := s.index.Load()
	if idx == nil {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, []any{})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, idx.Endpoints(0))
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	n := 10
	if lastParam := r.URL.Query().Get("last"); lastParam != "" {
		if parsed, err := strconv.Atoi(lastParam); err == nil && parsed > 0 {
			n = parsed
		}
	}

	entries := s.traceBuf.Last(n)
	if entries == nil {
		entries = []trace.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, entries)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	idx, err := s.loadUC.Execute(r.Context())
	if err != nil {
		s.logger.Error("reload failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]string{
			"error":   "reload_failed",
			"message": "archive reload failed, check server logs",
		})
		return
	}

	s.Rebuild(idx)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"status":  "ok",
		"message": "archive reloaded",
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
