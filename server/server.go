// Package server exposes the trace collection HTTP surface: obsel
// ingestion, paginated read-back, per-subject statistics, and cookie
// sessions, behind a chi router.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nots/obsel"
	"nots/paging"
	"nots/session"
	"nots/store"
)

// ktbsContext is the JSON-LD context URI advertised on every trace
// document, kept for compatibility with ktbs consumers.
const ktbsContext = "http://liris.cnrs.fr/silex/2011/ktbs-jsonld-context"

// ErrUnauthorized is returned when trace access control denies a read.
var ErrUnauthorized = errors.New("server: unauthorized access")

// Server wires the store and session manager behind HTTP handlers.
type Server struct {
	store    *store.Store
	sessions *session.Manager

	accessControl string
	maxObselCount int
	maxBodyBytes  int64
}

// Option configures a Server.
type Option func(*Server)

// WithAccessControl sets the trace read policy: none, localhost or any.
func WithAccessControl(mode string) Option {
	return func(s *Server) { s.accessControl = mode }
}

// WithMaxObselCount caps unpaged, unwindowed read-backs.
func WithMaxObselCount(n int) Option {
	return func(s *Server) { s.maxObselCount = n }
}

// WithMaxBodyBytes limits POST body sizes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// New creates a Server over the given store and session manager.
func New(st *store.Store, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		store:         st,
		sessions:      sessions,
		accessControl: "none",
		maxObselCount: paging.DefaultCeiling,
		maxBodyBytes:  1 << 20,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(MaxBody(s.maxBodyBytes))
	r.Use(RequestLogger)
	r.Use(session.Middleware(s.sessions.Secret))

	r.MethodFunc("GET", "/", s.handleIndex)
	r.MethodFunc("HEAD", "/", s.handleIndex)
	r.MethodFunc("OPTIONS", "/", s.handleIndex)
	r.MethodFunc("GET", "/login", s.handleLogin)
	r.MethodFunc("POST", "/login", s.handleLogin)
	r.Get("/logout", s.handleLogout)

	r.MethodFunc("POST", "/trace/", s.handleTraceRoot)
	r.MethodFunc("GET", "/trace/", s.handleTraceRoot)
	r.MethodFunc("HEAD", "/trace/", s.handleTraceRoot)
	r.MethodFunc("OPTIONS", "/trace/", s.handleTraceRoot)
	r.MethodFunc("GET", "/trace/{subject}", s.handleTraceSubject)
	r.MethodFunc("HEAD", "/trace/{subject}", s.handleTraceSubject)
	r.Get("/trace/{subject}/{id}", s.handleTraceObsel)

	r.Get("/stat/user/", s.handleStats)
	r.Get("/stat/user/{user}", s.handleUserStats)

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// corsHeaders sets the permissive cross-origin headers the collection
// endpoints advertise. Collection scripts run on arbitrary origins.
func corsHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// errorStatus maps domain errors to HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, obsel.ErrMalformedBatch), errors.Is(err, obsel.ErrBadTimestamp):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, paging.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, paging.ErrRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable
	default:
		return http.StatusInternalServerError
	}
}

// traceDocument is the JSON-LD-shaped envelope wrapping every obsel
// read-back.
func traceDocument(obsels []map[string]any) map[string]any {
	if obsels == nil {
		obsels = []map[string]any{}
	}
	return map[string]any{
		"@context":     []string{ktbsContext},
		"@id":          ".",
		"hasObselList": "",
		"obsels":       obsels,
	}
}
