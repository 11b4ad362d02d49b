package server

import (
	"log/slog"
	"net/http"

	"github.com/amparo-ai/amparo/pkg/gateway/config"
	"github.com/amparo-ai/amparo/pkg/gateway/handlers"
	"github.com/amparo-ai/amparo/pkg/gateway/mw"
	"github.com/amparo-ai/amparo/pkg/gateway/session"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	manager  *session.Manager
	memory   handlers.MemorySearcher
	postgres handlers.Pinger
	redis    handlers.Pinger
}

func New(cfg config.Config, logger *slog.Logger, manager *session.Manager, memory handlers.MemorySearcher, postgres, redis handlers.Pinger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
		manager:  manager,
		memory:   memory,
		postgres: postgres,
		redis:    redis,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	// A nil *Manager must stay a nil Drainer, not a typed nil interface.
	var drainer handlers.Drainer
	if s.manager != nil {
		drainer = s.manager
	}
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:   s.cfg,
		Sessions: drainer,
		Postgres: s.postgres,
		Redis:    s.redis,
	})

	s.mux.Handle("/v1/sessions", handlers.SessionsHandler{Manager: s.manager, Logger: s.logger})
	s.mux.Handle("/v1/sessions/{id}", handlers.SessionHandler{Manager: s.manager, Logger: s.logger})
	s.mux.Handle("/v1/sessions/{id}/refresh", handlers.SessionRefreshHandler{Manager: s.manager, Logger: s.logger})
	s.mux.Handle("/v1/sessions/{id}/reminder", handlers.SessionReminderHandler{Manager: s.manager, Logger: s.logger})
	s.mux.Handle("/v1/sessions/{id}/cancel", handlers.SessionCancelHandler{Manager: s.manager, Logger: s.logger})

	s.mux.Handle("/v1/users/{id}/memories", handlers.MemoriesHandler{Memory: s.memory, Logger: s.logger})

	s.mux.Handle("/v1/stream", handlers.StreamHandler{
		Config:  s.cfg,
		Manager: s.manager,
		Logger:  s.logger,
	})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
