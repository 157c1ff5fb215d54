// Package api exposes the HTTP interface for the harvester service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
	"github.com/JakeFAU/serp-harvester/internal/metrics"
	"github.com/JakeFAU/serp-harvester/internal/proxy"
	"github.com/JakeFAU/serp-harvester/internal/store"
)

// Config controls server-level behavior.
type Config struct {
	AuthEnabled bool
	APIKey      string
}

// Server wires HTTP handlers to the queue, stores, and proxy pool.
type Server struct {
	router chi.Router
	queue  crawler.Queue
	tasks  crawler.TaskStore
	pool   *proxy.Pool
	idGen  crawler.IDGenerator
	logger *zap.Logger
	cfg    Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	queue crawler.Queue,
	tasks crawler.TaskStore,
	pool *proxy.Pool,
	idGen crawler.IDGenerator,
	logger *zap.Logger,
	cfg Config,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		queue:  queue,
		tasks:  tasks,
		pool:   pool,
		idGen:  idGen,
		logger: logger,
		cfg:    cfg,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.AuthEnabled {
		r.Use(apiKeyMiddleware(cfg.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Post("/crawl", s.submitCrawl)
	r.Get("/crawl/{task_id}", s.getTask)
	r.Get("/tasks", s.listTasks)

	r.Route("/proxies", func(r chi.Router) {
		r.Get("/", s.listProxies)
		r.Post("/", s.addProxy)
		r.Get("/stats", s.proxyStats)
		r.Route("/{proxy_id}", func(r chi.Router) {
			r.Delete("/", s.removeProxy)
			r.Post("/enable", s.enableProxy)
			r.Post("/disable", s.disableProxy)
		})
	})

	s.router = r
	s.syncProxyGauges()
	return s
}

// syncProxyGauges refreshes the rotation gauges after any pool change.
func (s *Server) syncProxyGauges() {
	enabled, healthy := 0, 0
	for _, d := range s.pool.List() {
		if d.Enabled {
			enabled++
		}
		if d.Healthy {
			healthy++
		}
	}
	metrics.SetProxyCounts(enabled, healthy)
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The queue is the one dependency submission cannot work without.
	if _, err := s.queueDepth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequest struct {
	Keyword   string            `json:"keyword"`
	Engine    string            `json:"engine"`
	Selectors map[string]string `json:"selectors,omitempty"`
}

// submitCrawl accepts a job and acknowledges immediately; the worker picks
// it up from the queue.
func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}
	engine := crawler.Engine(req.Engine)
	if engine == "" {
		engine = crawler.EngineBing
	}
	if !engine.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown engine %q", req.Engine))
		return
	}

	taskID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not generate task id")
		return
	}
	job := crawler.CrawlJob{
		ID:        taskID,
		Keyword:   req.Keyword,
		Engine:    engine,
		Selectors: req.Selectors,
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.queue.Push(queueCtx, job); err != nil {
		s.logger.Error("enqueue failed", zap.String("task_id", taskID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not enqueue job")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": taskID,
		"message": "job accepted",
	})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "task store not configured")
		return
	}
	taskID := chi.URLParam(r, "task_id")
	record, err := s.tasks.GetTask(r.Context(), taskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("task lookup failed", zap.String("task_id", taskID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "task lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "task store not configured")
		return
	}
	tasks, err := s.tasks.ListTasks(r.Context())
	if err != nil {
		s.logger.Error("task listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "task listing failed")
		return
	}
	if tasks == nil {
		tasks = []crawler.TaskSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) listProxies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"proxies": s.pool.List()})
}

type addProxyRequest struct {
	Proxy string `json:"proxy"`
}

func (s *Server) addProxy(w http.ResponseWriter, r *http.Request) {
	var req addProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Proxy == "" {
		writeError(w, http.StatusBadRequest, "proxy spec is required")
		return
	}
	desc, err := s.pool.Add(req.Proxy)
	switch {
	case errors.Is(err, proxy.ErrBadProxySpec):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, proxy.ErrDuplicateProxy):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.syncProxyGauges()
		writeJSON(w, http.StatusCreated, desc)
	}
}

func (s *Server) removeProxy(w http.ResponseWriter, r *http.Request) {
	s.proxyOp(w, r, s.pool.Remove, "removed")
}

func (s *Server) enableProxy(w http.ResponseWriter, r *http.Request) {
	s.proxyOp(w, r, s.pool.Enable, "enabled")
}

func (s *Server) disableProxy(w http.ResponseWriter, r *http.Request) {
	s.proxyOp(w, r, s.pool.Disable, "disabled")
}

func (s *Server) proxyOp(w http.ResponseWriter, r *http.Request, op func(string) error, verb string) {
	proxyID := chi.URLParam(r, "proxy_id")
	if err := op(proxyID); err != nil {
		if errors.Is(err, proxy.ErrProxyNotFound) {
			writeError(w, http.StatusNotFound, "proxy not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.syncProxyGauges()
	writeJSON(w, http.StatusOK, map[string]string{"proxy_id": proxyID, "status": verb})
}

func (s *Server) proxyStats(w http.ResponseWriter, _ *http.Request) {
	s.syncProxyGauges()
	writeJSON(w, http.StatusOK, s.pool.Stats())
}

type depthReporter interface {
	Depth(ctx context.Context) (int64, error)
}

func (s *Server) queueDepth(ctx context.Context) (int64, error) {
	if q, ok := s.queue.(depthReporter); ok {
		return q.Depth(ctx)
	}
	return 0, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.status, time.Since(start))
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client went away, nothing to do
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
