// Package session holds the per-conversation actor: one goroutine owns the
// session state and serializes backend events, client commands and control
// calls through a single loop.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amparo-ai/amparo/pkg/backend/realtime"
	"github.com/amparo-ai/amparo/pkg/core/types"
	"github.com/amparo-ai/amparo/pkg/gateway/pager"
	"github.com/amparo-ai/amparo/pkg/gateway/protocol"
	"github.com/amparo-ai/amparo/pkg/gateway/tools"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusCreated Status = "created"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
	StatusError   Status = "error"
)

const (
	defaultOutboundQueueSize = 128
	persistQueueSize         = 64
	callQueueSize            = 32
	persistTimeout           = 5 * time.Second
)

// toolContinueDirective resumes the AI after a tool result so it narrates
// the outcome instead of falling silent.
const toolContinueDirective = "Continue speaking. Describe the result to the user warmly and naturally, in their language."

// Config bounds one session's transport behavior.
type Config struct {
	OutboundQueueSize   int
	WriteTimeout        time.Duration
	ReadTimeout         time.Duration
	PingInterval        time.Duration
	MaxJSONMessageBytes int64
	MaxSessionDuration  time.Duration
}

// TurnRecorder persists finalized conversation turns.
type TurnRecorder interface {
	AppendTurn(ctx context.Context, sessionID, userID string, turn types.Turn) error
}

// Dependencies wires one session.
type Dependencies struct {
	SessionID string
	UserID    string
	Logger    *slog.Logger
	Backend   realtime.Session
	// BackendConfig is sent as session.update once the backend acknowledges
	// the connection.
	BackendConfig realtime.SessionConfig
	// Opener, when set, is issued as response instructions after the backend
	// is configured so the companion speaks first.
	Opener string
	// Language is the per-session language override, kept so a context
	// refresh reassembles in the same language the session started with.
	Language string
	Tools    *tools.Registry
	Memory   TurnRecorder
	Config   Config
	// OnEnd runs exactly once when the session's actor exits.
	OnEnd func(sessionID string)
	Now   func() time.Time
}

// Info is a point-in-time snapshot of session state.
type Info struct {
	SessionID      string              `json:"session_id"`
	UserID         string              `json:"user_id"`
	ConversationID string              `json:"conversation_id,omitempty"`
	Status         Status              `json:"status"`
	TurnCount      int                 `json:"turn_count"`
	TokenUsage     protocol.TokenUsage `json:"token_usage"`
	CreatedAt      time.Time           `json:"created_at"`
	EndedAt        *time.Time          `json:"ended_at,omitempty"`
}

type turnRecord struct {
	turn types.Turn
}

// Session is one live conversation between a user and the AI backend.
type Session struct {
	id     string
	userID string
	logger *slog.Logger
	cfg    Config

	backend    realtime.Session
	backendCfg realtime.SessionConfig
	opener     string
	language   string
	tools      *tools.Registry
	memory     TurnRecorder
	pager      *pager.Pager
	onEnd      func(string)
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	calls   chan func()
	persist chan turnRecord

	startOnce sync.Once
	endOnce   sync.Once

	mu             sync.Mutex
	status         Status
	conversationID string
	turnCount      int
	usage          protocol.TokenUsage
	createdAt      time.Time
	endedAt        *time.Time
	endReason      string
	openerSent     bool
	client         *clientLink
}

func New(deps Dependencies) (*Session, error) {
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend session is required")
	}
	if deps.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = defaultOutboundQueueSize
	}
	if deps.Config.WriteTimeout <= 0 {
		deps.Config.WriteTimeout = 5 * time.Second
	}
	if deps.Config.PingInterval <= 0 {
		deps.Config.PingInterval = 20 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         deps.SessionID,
		userID:     deps.UserID,
		logger:     deps.Logger.With("session_id", deps.SessionID),
		cfg:        deps.Config,
		backend:    deps.Backend,
		backendCfg: deps.BackendConfig,
		opener:     deps.Opener,
		language:   deps.Language,
		tools:      deps.Tools,
		memory:     deps.Memory,
		pager:      pager.New(),
		onEnd:      deps.OnEnd,
		now:        deps.Now,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		calls:      make(chan func(), callQueueSize),
		persist:    make(chan turnRecord, persistQueueSize),
		status:     StatusCreated,
		createdAt:  deps.Now().UTC(),
	}, nil
}

// Start launches the actor. Safe to call once; later calls are no-ops.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		go s.persistLoop()
		go s.run()
	})
}

func (s *Session) ID() string       { return s.id }
func (s *Session) UserID() string   { return s.userID }
func (s *Session) Language() string { return s.language }

// Done is closed when the actor has exited and all state is final.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		SessionID:      s.id,
		UserID:         s.userID,
		ConversationID: s.conversationID,
		Status:         s.status,
		TurnCount:      s.turnCount,
		TokenUsage:     s.usage,
		CreatedAt:      s.createdAt,
		EndedAt:        s.endedAt,
	}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// End shuts the session down. Idempotent: the first reason wins and later
// calls return immediately.
func (s *Session) End(reason string) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		if s.status != StatusError {
			s.status = StatusEnded
		}
		s.endReason = reason
		now := s.now().UTC()
		s.endedAt = &now
		s.mu.Unlock()
		s.cancel()
	})
}

// Refresh swaps the session instructions in place. Streaming audio is not
// interrupted; only the system context changes for subsequent turns.
func (s *Session) Refresh(instructions string) error {
	return s.post(func() {
		cfg := s.backendCfg
		cfg.Instructions = instructions
		s.backendCfg = cfg
		if err := s.backend.UpdateSession(cfg); err != nil {
			s.logger.Error("failed to refresh session instructions", "error", err)
		}
	})
}

// InjectReminder asks the backend to deliver an out-of-band reminder as the
// next spoken response.
func (s *Session) InjectReminder(directive string) error {
	return s.post(func() {
		if err := s.backend.CreateResponse(directive); err != nil {
			s.logger.Error("failed to inject reminder", "error", err)
		}
	})
}

// CancelResponse aborts the in-flight backend response, if any.
func (s *Session) CancelResponse() error {
	return s.post(func() {
		if err := s.backend.CancelResponse(); err != nil {
			s.logger.Error("failed to cancel response", "error", err)
		}
	})
}

func (s *Session) post(fn func()) error {
	select {
	case s.calls <- fn:
		return nil
	case <-s.ctx.Done():
		return fmt.Errorf("session %s is not active", s.id)
	}
}

func (s *Session) run() {
	defer s.finish()

	var maxCh <-chan time.Time
	if s.cfg.MaxSessionDuration > 0 {
		timer := time.NewTimer(s.cfg.MaxSessionDuration)
		defer timer.Stop()
		maxCh = timer.C
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.calls:
			fn()
		case ev, ok := <-s.backend.Events():
			if !ok {
				s.handleBackendGone()
				return
			}
			if fatal := s.handleBackendEvent(ev); fatal {
				return
			}
		case <-maxCh:
			s.logger.Info("maximum session duration reached")
			s.sendToClient(protocol.NewSessionStatus(string(StatusEnded), s.turnCountSnapshot(), s.usageSnapshot()), true)
			s.End("max-duration")
			return
		}
	}
}

func (s *Session) handleBackendGone() {
	err := s.backend.Err()
	s.mu.Lock()
	ended := s.status == StatusEnded
	if !ended && err != nil {
		s.status = StatusError
	}
	s.mu.Unlock()
	if !ended && err != nil {
		s.logger.Error("backend connection lost", "error", err)
		s.sendToClient(protocol.NewError("backend_unavailable", "the conversation backend disconnected", true), true)
	}
}

// handleBackendEvent reacts to one decoded backend frame. The return value
// reports whether the session must terminate.
func (s *Session) handleBackendEvent(ev realtime.Event) bool {
	switch e := ev.(type) {
	case realtime.CreatedEvent:
		s.mu.Lock()
		s.conversationID = e.SessionID
		s.mu.Unlock()
		if err := s.backend.UpdateSession(s.backendCfg); err != nil {
			s.logger.Error("failed to configure backend session", "error", err)
			s.failSession()
			return true
		}
	case realtime.UpdatedEvent:
		s.mu.Lock()
		firstUpdate := s.status == StatusCreated
		if firstUpdate {
			s.status = StatusActive
		}
		opener := ""
		if firstUpdate && !s.openerSent {
			s.openerSent = true
			opener = s.opener
		}
		s.mu.Unlock()
		if firstUpdate {
			s.logger.Info("session active", "user_id", s.userID)
			s.sendToClient(protocol.NewSessionStatus(string(StatusActive), s.turnCountSnapshot(), s.usageSnapshot()), true)
		}
		if opener != "" {
			if err := s.backend.CreateResponse(opener); err != nil {
				s.logger.Error("failed to request opening response", "error", err)
			}
		}
	case realtime.AudioDeltaEvent:
		// Hot path: forward verbatim, no collaborator I/O, arrival order.
		s.sendToClient(protocol.NewAIAudio(e.DeltaB64, s.sessionTimeMS()), false)
	case realtime.InputTranscriptEvent:
		s.mu.Lock()
		s.turnCount++
		s.mu.Unlock()
		s.sendToClient(protocol.NewTranscript(types.RoleUser, e.Text, s.sessionTimeMS()), false)
		s.enqueueTurn(types.Turn{Role: types.RoleUser, Text: e.Text, Timestamp: s.now().UTC()})
	case realtime.OutputTranscriptEvent:
		s.mu.Lock()
		s.turnCount++
		s.mu.Unlock()
		s.sendToClient(protocol.NewTranscript(types.RoleAssistant, e.Text, s.sessionTimeMS()), false)
		s.enqueueTurn(types.Turn{Role: types.RoleAssistant, Text: e.Text, Timestamp: s.now().UTC()})
	case realtime.ToolCallEvent:
		s.dispatchToolCall(e)
	case realtime.DoneEvent:
		s.mu.Lock()
		s.usage.InputTokens += e.InputTokens
		s.usage.OutputTokens += e.OutputTokens
		s.mu.Unlock()
		s.sendToClient(protocol.NewSessionStatus(string(s.Status()), s.turnCountSnapshot(), s.usageSnapshot()), false)
	case realtime.ErrorEvent:
		if e.Fatal {
			s.logger.Error("backend reported fatal error", "code", e.Code, "message", e.Message)
			s.sendToClient(protocol.NewError(e.Code, e.Message, true), true)
			s.failSession()
			return true
		}
		s.logger.Warn("backend reported error", "code", e.Code, "message", e.Message)
		s.sendToClient(protocol.NewError(e.Code, e.Message, false), true)
	case realtime.UnknownEvent:
		s.logger.Debug("ignoring unknown backend event", "event_type", e.Type)
	}
	return false
}

// dispatchToolCall executes the tool off the event loop so audio keeps
// flowing, then posts the result back for the serialized backend write.
func (s *Session) dispatchToolCall(call realtime.ToolCallEvent) {
	go func() {
		result := s.tools.Execute(s.ctx, s.toolEnv(), call.Name, call.Arguments)
		if !result.Success {
			s.logger.Warn("tool call failed", "tool", call.Name, "code", result.Error, "message", result.Message)
		}
		err := s.post(func() {
			if err := s.backend.SendToolResult(call.CallID, result.Encode()); err != nil {
				s.logger.Error("failed to send tool result", "tool", call.Name, "error", err)
				return
			}
			if err := s.backend.CreateResponse(toolContinueDirective); err != nil {
				s.logger.Error("failed to resume response after tool call", "tool", call.Name, "error", err)
			}
		})
		if err != nil {
			s.logger.Debug("session ended before tool result delivery", "tool", call.Name)
		}
	}()
}

func (s *Session) toolEnv() tools.Env {
	return tools.Env{
		SessionID: s.id,
		UserID:    s.userID,
		Pager:     s.pager,
		Emit:      s.emitMediaEvent,
	}
}

func (s *Session) emitMediaEvent(ev tools.MediaEvent) {
	items := make([]protocol.MediaItem, 0, len(ev.Photos)+1)
	for _, photo := range ev.Photos {
		items = append(items, protocol.MediaItem{
			ID:       photo.ID,
			URL:      photo.URL,
			Caption:  photo.Caption,
			Names:    photo.Names,
			Keywords: photo.Keywords,
		})
	}
	if ev.Track != nil {
		items = append(items, protocol.MediaItem{
			ID:      ev.Track.ID,
			URL:     ev.Track.URL,
			Caption: ev.Track.Title + " - " + ev.Track.Artist,
		})
	}
	s.sendToClient(protocol.NewMediaEvent(items, ev.Reason, ev.Context), false)
}

// enqueueTurn hands a finalized turn to the persistence goroutine. Memory
// writes must never stall the audio path, so a full queue drops the archive
// copy with a warning.
func (s *Session) enqueueTurn(turn types.Turn) {
	if s.memory == nil {
		return
	}
	select {
	case s.persist <- turnRecord{turn: turn}:
	default:
		s.logger.Warn("turn persistence queue full, dropping turn", "role", turn.Role)
	}
}

func (s *Session) persistLoop() {
	for rec := range s.persist {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := s.memory.AppendTurn(ctx, s.id, s.userID, rec.turn); err != nil {
			s.logger.Warn("failed to persist turn", "role", rec.turn.Role, "error", err)
		}
		cancel()
	}
}

func (s *Session) failSession() {
	s.mu.Lock()
	s.status = StatusError
	now := s.now().UTC()
	s.endedAt = &now
	s.mu.Unlock()
}

func (s *Session) finish() {
	s.End("session-closed")
	close(s.persist)
	s.detachClient()
	if err := s.backend.Close(); err != nil {
		s.logger.Debug("backend close failed", "error", err)
	}
	close(s.done)
	if s.onEnd != nil {
		s.onEnd(s.id)
	}
	s.logger.Info("session finished", "status", string(s.Status()), "turns", s.turnCountSnapshot())
}

func (s *Session) sessionTimeMS() int64 {
	return s.now().UTC().Sub(s.createdAt).Milliseconds()
}

func (s *Session) turnCountSnapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnCount
}

func (s *Session) usageSnapshot() protocol.TokenUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// sendToClient marshals and queues one frame for the attached client. With
// no client attached the frame is discarded; the conversation itself lives
// on the backend connection.
func (s *Session) sendToClient(v any, priority bool) {
	s.mu.Lock()
	link := s.client
	s.mu.Unlock()
	if link == nil {
		return
	}

	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to marshal client frame", "error", err)
		return
	}

	queue := link.normal
	if priority {
		queue = link.priority
	}
	select {
	case queue <- payload:
	case <-link.gone:
	case <-s.ctx.Done():
	}
}
