package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amparo-ai/amparo/pkg/core"
)

const defaultConnectTimeout = 15 * time.Second

// Config configures one backend connection.
type Config struct {
	// URL is the backend websocket endpoint (ws:// or wss://, http(s) accepted).
	URL string
	// APIKey is sent as a bearer token on the upgrade request.
	APIKey string
	// Model selects the realtime model, passed as a query parameter.
	Model string
	// ConnectTimeout bounds the dial when the context has no deadline.
	ConnectTimeout time.Duration
	// Logger receives transport diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Dialer opens backend connections. The session manager consumes this
// interface so tests can substitute a fake backend.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Session, error)
}

// Session is one live duplex connection to the AI backend.
type Session interface {
	Events() <-chan Event
	UpdateSession(cfg SessionConfig) error
	AppendAudio(audioB64 string) error
	CommitAudio() error
	CreateResponse(instructions string) error
	CancelResponse() error
	SendToolResult(callID, output string) error
	Close() error
	Err() error
}

// WSDialer is the production Dialer backed by gorilla/websocket.
type WSDialer struct{}

func (WSDialer) Dial(ctx context.Context, cfg Config) (Session, error) {
	endpoint, err := websocketEndpoint(cfg.URL, cfg.Model)
	if err != nil {
		return nil, err
	}

	headers := make(http.Header)
	if strings.TrimSpace(cfg.APIKey) != "" {
		headers.Set("Authorization", "Bearer "+strings.TrimSpace(cfg.APIKey))
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	dialer := websocket.DefaultDialer
	if dialer == nil {
		dialer = &websocket.Dialer{}
	}
	conn, resp, err := dialer.DialContext(dialCtx, endpoint, headers)
	if err != nil {
		if resp != nil {
			return nil, core.NewTransportError(fmt.Sprintf("backend dial failed (status %d)", resp.StatusCode), err)
		}
		return nil, core.NewTransportError("backend dial failed", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &wsSession{
		conn:   conn,
		logger: logger,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func websocketEndpoint(raw, model string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", core.NewInvalidRequestError("invalid backend URL")
	}
	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", core.NewInvalidRequestError("backend URL must use http(s) or ws(s)")
	}
	if strings.TrimSpace(model) != "" {
		q := u.Query()
		q.Set("model", strings.TrimSpace(model))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

type wsSession struct {
	conn   *websocket.Conn
	logger *slog.Logger

	events chan Event
	done   chan struct{}
	closed chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	isClosed  atomic.Bool

	errMu sync.Mutex
	err   error
}

// Events yields decoded backend events in arrival order. The channel is
// closed when the connection ends. Sends block rather than drop so the
// consumer observes every audio delta exactly once.
func (s *wsSession) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.events
}

func (s *wsSession) UpdateSession(cfg SessionConfig) error {
	return s.sendJSON(sessionUpdateFrame{Type: "session.update", Session: cfg})
}

func (s *wsSession) AppendAudio(audioB64 string) error {
	return s.sendJSON(audioAppendFrame{Type: "input_audio_buffer.append", Audio: audioB64})
}

func (s *wsSession) CommitAudio() error {
	return s.sendJSON(audioCommitFrame{Type: "input_audio_buffer.commit"})
}

func (s *wsSession) CreateResponse(instructions string) error {
	frame := responseCreateFrame{Type: "response.create"}
	if strings.TrimSpace(instructions) != "" {
		frame.Response = &responseOptions{Instructions: instructions}
	}
	return s.sendJSON(frame)
}

func (s *wsSession) CancelResponse() error {
	return s.sendJSON(responseCancelFrame{Type: "response.cancel"})
}

func (s *wsSession) SendToolResult(callID, output string) error {
	return s.sendJSON(itemCreateFrame{
		Type: "conversation.item.create",
		Item: functionItem{
			Type:   "function_call_output",
			CallID: strings.TrimSpace(callID),
			Output: output,
		},
	})
}

func (s *wsSession) sendJSON(v any) error {
	if s == nil {
		return fmt.Errorf("backend session must not be nil")
	}
	if s.isClosed.Load() {
		return core.NewTransportError("backend session is closed", nil)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(v); err != nil {
		return core.NewTransportError("backend write failed", err)
	}
	return nil
}

func (s *wsSession) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.isClosed.Store(true)
		close(s.closed)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

// Err returns the terminal connection error, if any. Blocks until the read
// loop has finished.
func (s *wsSession) Err() error {
	if s == nil {
		return nil
	}
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *wsSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *wsSession) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			if s.isClosed.Load() {
				return
			}
			s.setErr(core.NewTransportError("backend read failed", err))
			return
		}

		event, decodeErr := decodeEvent(data)
		if decodeErr != nil {
			// Malformed frame: drop it, keep the session up.
			s.logger.Warn("dropping malformed backend frame", "error", decodeErr)
			continue
		}
		select {
		case s.events <- event:
		case <-s.closed:
			return
		}
	}
}
