// Package dispatcher implements the ingress HTTP API of spec.md §6: the
// façade a front-end (CLI client, or any other caller) submits utterances
// and administrative requests to. It wires together the Permission Engine,
// Confirmation Broker, Audit Log, Context Store, Service Coordinator, Tool
// Registry, and Agent Loop behind a small set of routes.
package dispatcher

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hopper-project/core/pkg/agent"
	"github.com/hopper-project/core/pkg/audit"
	"github.com/hopper-project/core/pkg/contextstore"
	"github.com/hopper-project/core/pkg/hlog"
	"github.com/hopper-project/core/pkg/worker"
)

// Server holds every collaborator the ingress routes need and exposes the
// assembled chi router via Handler.
type Server struct {
	Loop    *agent.Loop
	Context *contextstore.Store
	Workers *worker.Coordinator
	Gate    *Gate
	Audit   *audit.Log
	Index   *audit.Index
	Tokens  *TokenManager // nil disables auth (development mode)
	Logger  *hlog.Logger  // nil disables request-path event logging

	// ExecutorWorker is the worker name /exec forwards to once the Gate
	// allows the call (spec.md §6: "POST /exec (executor worker)").
	ExecutorWorker string

	router chi.Router
}

// New assembles the router. Call Handler to get an http.Handler suitable
// for http.ListenAndServe.
func New(s *Server) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth(s.Tokens))
		r.Post("/command", s.handleCommand)
		r.Post("/context", s.handleContextReset)
		r.Get("/context/{user_id}", s.handleContextGet)
		r.Delete("/context/{user_id}", s.handleContextClear)
		r.Post("/exec", s.handleExec)
		r.Post("/security/confirm/{id}", s.handleConfirm)
		r.Get("/security/pending", s.handlePending)
		r.Get("/security/report", s.handleSecurityReport)
	})

	s.router = r
	return s
}

// Handler returns the assembled router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// logEvent is a no-op when Logger is unset, so a Server built without one
// (as most tests do) behaves exactly as before this field was added.
func (s *Server) logEvent(level hlog.Level, category hlog.Category, eventType, principal string, details map[string]any) {
	if s.Logger == nil {
		return
	}
	_ = s.Logger.Log(hlog.Event{
		Level:     level,
		Category:  category,
		EventType: eventType,
		SessionID: principal,
		Details:   details,
	})
}
