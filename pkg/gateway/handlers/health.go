package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/amparo-ai/amparo/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// Pinger is anything that can confirm a live dependency, typically the
// postgres pool and the redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Drainer reports whether the session registry has started refusing new
// sessions for shutdown.
type Drainer interface {
	Draining() bool
}

type ReadyHandler struct {
	Config   config.Config
	Sessions Drainer
	Postgres Pinger
	Redis    Pinger
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		AuthMode string   `json:"auth_mode"`
		Sessions bool     `json:"sessions_enabled"`
		Issues   []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if h.Config.AuthMode == config.AuthModeRequired && len(h.Config.APIKeys) == 0 {
		issues = append(issues, "auth_mode=required but no api keys configured")
	}
	// WSReadTimeout of zero means no client read deadline, which is the
	// default; only a negative value is misconfigured.
	if h.Config.WSPingInterval <= 0 || h.Config.WSWriteTimeout <= 0 || h.Config.WSReadTimeout < 0 {
		issues = append(issues, "websocket timeouts are misconfigured")
	}
	if h.Config.MaxSessionDuration <= 0 {
		issues = append(issues, "max session duration must be > 0")
	}
	if h.Config.ToolTimeout <= 0 {
		issues = append(issues, "tool timeout must be > 0")
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if h.Postgres != nil {
		if err := h.Postgres.Ping(ctx); err != nil {
			issues = append(issues, "postgres unreachable")
		}
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx); err != nil {
			issues = append(issues, "redis unreachable")
		}
	}

	sessions := true
	if h.Sessions != nil && h.Sessions.Draining() {
		sessions = false
		issues = append(issues, "session registry is draining")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:       ok,
		AuthMode: string(h.Config.AuthMode),
		Sessions: sessions,
		Issues:   issues,
	})
}
