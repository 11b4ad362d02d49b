package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amparo-ai/amparo/pkg/core"
	"github.com/amparo-ai/amparo/pkg/gateway/config"
	"github.com/amparo-ai/amparo/pkg/gateway/mw"
	"github.com/amparo-ai/amparo/pkg/gateway/protocol"
	"github.com/amparo-ai/amparo/pkg/gateway/session"
)

const streamHandshakeTimeout = 5 * time.Second

// StreamHandler handles GET /v1/stream websocket connections. The first
// frame on the socket must be join-session naming an existing session, after
// which the connection is handed to that session's writer and reader loops.
type StreamHandler struct {
	Config  config.Config
	Manager *session.Manager
	Logger  *slog.Logger
}

func (h StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		reqID, _ := mw.RequestIDFrom(r.Context())
		methodNotAllowed(w, reqID)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	if h.Config.WSMaxJSONMessageBytes > 0 {
		conn.SetReadLimit(h.Config.WSMaxJSONMessageBytes)
	}

	_ = conn.SetReadDeadline(time.Now().Add(streamHandshakeTimeout))
	messageType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		h.closeWithError(conn, "bad_request", "failed to read join-session")
		return
	}
	if messageType != websocket.TextMessage {
		h.closeWithError(conn, "bad_request", "first frame must be join-session")
		return
	}

	decoded, err := protocol.DecodeClientMessage(firstFrame)
	if err != nil {
		h.closeWithError(conn, "bad_request", "invalid join-session frame")
		return
	}
	join, ok := decoded.(protocol.ClientJoinSession)
	if !ok {
		h.closeWithError(conn, "bad_request", "first frame must be join-session")
		return
	}

	if err := h.Manager.Attach(join.SessionID, conn); err != nil {
		coreErr := core.AsError(err)
		h.closeWithError(conn, string(coreErr.Type), coreErr.Message)
		return
	}
	// The session owns the connection from here.
}

func (h StreamHandler) closeWithError(conn *websocket.Conn, code, message string) {
	frame := protocol.NewError(code, message, true)
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
	_ = conn.Close()
	if h.Logger != nil {
		h.Logger.Debug("stream handshake rejected", "code", code, "message", message)
	}
}
