package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amparo-ai/amparo/pkg/core"
	"github.com/amparo-ai/amparo/pkg/gateway/mw"
	"github.com/amparo-ai/amparo/pkg/gateway/session"
)

const maxControlBodyBytes = 64 << 10

// SessionsHandler handles POST /v1/sessions.
type SessionsHandler struct {
	Manager *session.Manager
	Logger  *slog.Logger
}

func (h SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		methodNotAllowed(w, reqID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxControlBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeCoreErrorJSON(w, reqID, core.NewInvalidRequestError("failed to read request body"), http.StatusBadRequest)
		return
	}

	var req struct {
		UserID             string `json:"user_id"`
		Voice              string `json:"voice"`
		Language           string `json:"language"`
		MaxDurationSeconds int    `json:"max_duration_seconds"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeCoreErrorJSON(w, reqID, core.NewInvalidRequestError("invalid json body"), http.StatusBadRequest)
		return
	}

	info, err := h.Manager.CreateSession(r.Context(), strings.TrimSpace(req.UserID), session.Options{
		Voice:       strings.TrimSpace(req.Voice),
		Language:    strings.TrimSpace(req.Language),
		MaxDuration: time.Duration(req.MaxDurationSeconds) * time.Second,
	})
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// SessionHandler handles GET and DELETE on /v1/sessions/{id}.
type SessionHandler struct {
	Manager *session.Manager
	Logger  *slog.Logger
}

func (h SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	sessionID := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		sess, ok := h.Manager.Get(sessionID)
		if !ok {
			writeCoreErrorJSON(w, reqID, core.NewNotFoundError("session not found"), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	case http.MethodDelete:
		info, err := h.Manager.End(sessionID, "client-request")
		if err != nil {
			writeErr(w, reqID, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	default:
		methodNotAllowed(w, reqID)
	}
}

// SessionRefreshHandler handles POST /v1/sessions/{id}/refresh. It reloads
// the user's profile and memories and swaps the live instructions in place.
type SessionRefreshHandler struct {
	Manager *session.Manager
	Logger  *slog.Logger
}

func (h SessionRefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		methodNotAllowed(w, reqID)
		return
	}
	info, err := h.Manager.Refresh(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// SessionReminderHandler handles POST /v1/sessions/{id}/reminder.
type SessionReminderHandler struct {
	Manager *session.Manager
	Logger  *slog.Logger
}

func (h SessionReminderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		methodNotAllowed(w, reqID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxControlBodyBytes)
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCoreErrorJSON(w, reqID, core.NewInvalidRequestError("invalid json body"), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeCoreErrorJSON(w, reqID, core.NewInvalidRequestErrorWithParam("text is required", "text"), http.StatusBadRequest)
		return
	}

	info, err := h.Manager.InjectReminder(r.PathValue("id"), req.Text)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// SessionCancelHandler handles POST /v1/sessions/{id}/cancel. It interrupts
// the in-flight AI response, used when the user starts talking over it.
type SessionCancelHandler struct {
	Manager *session.Manager
	Logger  *slog.Logger
}

func (h SessionCancelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		methodNotAllowed(w, reqID)
		return
	}
	if err := h.Manager.CancelResponse(r.PathValue("id")); err != nil {
		writeErr(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}
