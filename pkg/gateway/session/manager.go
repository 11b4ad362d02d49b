package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/amparo-ai/amparo/pkg/backend/realtime"
	"github.com/amparo-ai/amparo/pkg/core"
	"github.com/amparo-ai/amparo/pkg/core/types"
	"github.com/amparo-ai/amparo/pkg/gateway/tools"
	"github.com/amparo-ai/amparo/pkg/prompt"
)

const defaultOpener = "Open the conversation yourself with a warm, brief greeting in the user's language. Use their name."

// ProfileStore serves the static user profile.
type ProfileStore interface {
	LoadIdentity(ctx context.Context, userID string) (types.Identity, error)
	LoadSafetyRules(ctx context.Context, userID string) ([]types.SafetyRule, error)
	LoadMusicPreferences(ctx context.Context, userID string) (*types.MusicPreferences, error)
}

// MemoryGateway serves the three memory tiers and records turns.
type MemoryGateway interface {
	Load(ctx context.Context, userID string) (types.MemoryTiers, error)
	AppendTurn(ctx context.Context, sessionID, userID string, turn types.Turn) error
}

// ManagerConfig configures session creation.
type ManagerConfig struct {
	Session Config

	Voice              string
	InputAudioFormat   string
	OutputAudioFormat  string
	TranscriptionModel string
	// Opener overrides the default first-response directive.
	Opener string
}

// Options carries per-session overrides of the manager defaults. Zero
// values fall back to ManagerConfig.
type Options struct {
	Voice       string
	Language    string
	MaxDuration time.Duration
}

// Manager owns the session registry: creation with context assembly,
// lookup, lifecycle control and shutdown drain.
type Manager struct {
	logger     *slog.Logger
	cfg        ManagerConfig
	dialer     realtime.Dialer
	backendCfg realtime.Config
	profiles   ProfileStore
	memory     MemoryGateway
	tools      *tools.Registry

	mu       sync.Mutex
	sessions map[string]*Session
	draining bool
	wg       sync.WaitGroup
}

func NewManager(logger *slog.Logger, cfg ManagerConfig, dialer realtime.Dialer, backendCfg realtime.Config, profiles ProfileStore, memory MemoryGateway, registry *tools.Registry) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Opener == "" {
		cfg.Opener = defaultOpener
	}
	return &Manager{
		logger:     logger,
		cfg:        cfg,
		dialer:     dialer,
		backendCfg: backendCfg,
		profiles:   profiles,
		memory:     memory,
		tools:      registry,
		sessions:   make(map[string]*Session),
	}
}

// CreateSession assembles the personalized context, opens the backend
// connection and starts the session actor.
func (m *Manager) CreateSession(ctx context.Context, userID string, opts Options) (Info, error) {
	if userID == "" {
		return Info{}, core.NewInvalidRequestErrorWithParam("user_id is required", "user_id")
	}
	if opts.MaxDuration < 0 {
		return Info{}, core.NewInvalidRequestErrorWithParam("max_duration must not be negative", "max_duration")
	}
	m.mu.Lock()
	draining := m.draining
	m.mu.Unlock()
	if draining {
		return Info{}, core.NewAPIError("server is shutting down")
	}

	instructions, err := m.assembleInstructions(ctx, userID, opts.Language)
	if err != nil {
		return Info{}, err
	}

	voice := m.cfg.Voice
	if opts.Voice != "" {
		voice = opts.Voice
	}
	sessCfg := m.cfg.Session
	if opts.MaxDuration > 0 {
		sessCfg.MaxSessionDuration = opts.MaxDuration
	}

	backend, err := m.dialer.Dial(ctx, m.backendCfg)
	if err != nil {
		return Info{}, err
	}

	sessionID := uuid.NewString()
	sess, err := New(Dependencies{
		SessionID: sessionID,
		UserID:    userID,
		Logger:    m.logger,
		Backend:   backend,
		BackendConfig: realtime.SessionConfig{
			Modalities:        []string{"audio", "text"},
			Instructions:      instructions,
			Voice:             voice,
			InputAudioFormat:  m.cfg.InputAudioFormat,
			OutputAudioFormat: m.cfg.OutputAudioFormat,
			Tools:             m.tools.Definitions(),
			Transcription:     &realtime.Transcription{Model: m.cfg.TranscriptionModel},
		},
		Opener:   fmt.Sprintf("%s It is %s for them right now.", m.cfg.Opener, dayPart(time.Now())),
		Language: opts.Language,
		Tools:    m.tools,
		Memory:   m.memory,
		Config:   sessCfg,
		OnEnd: func(id string) {
			m.remove(id)
			m.wg.Done()
		},
	})
	if err != nil {
		_ = backend.Close()
		return Info{}, err
	}

	m.mu.Lock()
	m.sessions[sessionID] = sess
	m.wg.Add(1)
	m.mu.Unlock()

	sess.Start()
	m.logger.Info("session created", "session_id", sessionID, "user_id", userID)
	return sess.Snapshot(), nil
}

// assembleInstructions fetches profile, safety rules, memory tiers and music
// preferences in parallel and renders the instruction document. A missing
// profile degrades to a generic companion; memory and music failures degrade
// to empty sections. Safety rule failures are fatal to creation. A non-empty
// language overrides the profile language for this session.
func (m *Manager) assembleInstructions(ctx context.Context, userID, language string) (string, error) {
	var (
		identity types.Identity
		safety   []types.SafetyRule
		tiers    types.MemoryTiers
		music    *types.MusicPreferences
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		id, err := m.profiles.LoadIdentity(egCtx, userID)
		if err != nil {
			if coreErr := core.AsError(err); coreErr.Type == core.ErrNotFound {
				m.logger.Warn("no profile for user, using generic companion context", "user_id", userID)
				identity = types.Identity{UserID: userID, Name: "friend", Language: "en", CognitiveMode: "standard"}
				return nil
			}
			return err
		}
		identity = id
		return nil
	})
	eg.Go(func() error {
		rules, err := m.profiles.LoadSafetyRules(egCtx, userID)
		if err != nil {
			return err
		}
		safety = rules
		return nil
	})
	eg.Go(func() error {
		loaded, err := m.memory.Load(egCtx, userID)
		if err != nil {
			m.logger.Warn("memory load failed, starting with empty tiers", "user_id", userID, "error", err)
			return nil
		}
		tiers = loaded
		return nil
	})
	eg.Go(func() error {
		prefs, err := m.profiles.LoadMusicPreferences(egCtx, userID)
		if err != nil {
			m.logger.Warn("music preference load failed", "user_id", userID, "error", err)
			return nil
		}
		music = prefs
		return nil
	})
	if err := eg.Wait(); err != nil {
		return "", err
	}
	if language != "" {
		identity.Language = language
	}

	return prompt.Assemble(prompt.Input{
		Identity: identity,
		Memories: tiers,
		Safety:   safety,
		Music:    music,
	}), nil
}

// Get returns a live or finished session by id.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok
}

// End shuts the session down and removes it from the registry. Ending an
// already-ended or unknown session is a no-op, so duplicate close signals
// from client disconnect and explicit end requests both land safely.
func (m *Manager) End(sessionID, reason string) (Info, error) {
	sess, ok := m.Get(sessionID)
	if !ok {
		return Info{SessionID: sessionID, Status: StatusEnded}, nil
	}
	sess.End(reason)
	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		m.logger.Warn("session did not finish within grace period", "session_id", sessionID)
	}
	return sess.Snapshot(), nil
}

// Draining reports whether shutdown has begun and new sessions are refused.
func (m *Manager) Draining() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draining
}

func (m *Manager) remove(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

// Refresh reassembles the instruction document from current profile and
// memory and swaps it into the live session.
func (m *Manager) Refresh(ctx context.Context, sessionID string) (Info, error) {
	sess, ok := m.Get(sessionID)
	if !ok {
		return Info{}, core.NewNotFoundError(fmt.Sprintf("session %q not found", sessionID))
	}
	if sess.Status() != StatusActive {
		return Info{}, core.NewInvalidRequestError("session is not active")
	}
	instructions, err := m.assembleInstructions(ctx, sess.UserID(), sess.Language())
	if err != nil {
		return Info{}, err
	}
	if err := sess.Refresh(instructions); err != nil {
		return Info{}, core.NewInvalidRequestError("session is not active")
	}
	return sess.Snapshot(), nil
}

// InjectReminder makes the companion deliver a scheduled reminder as its
// next response.
func (m *Manager) InjectReminder(sessionID, reminder string) (Info, error) {
	sess, ok := m.Get(sessionID)
	if !ok {
		return Info{}, core.NewNotFoundError(fmt.Sprintf("session %q not found", sessionID))
	}
	if sess.Status() != StatusActive {
		return Info{}, core.NewInvalidRequestError("session is not active")
	}
	directive := fmt.Sprintf("A scheduled reminder is due. Warmly and clearly remind the user: %s. Keep it short and check they understood.", reminder)
	if err := sess.InjectReminder(directive); err != nil {
		return Info{}, core.NewInvalidRequestError("session is not active")
	}
	return sess.Snapshot(), nil
}

// CancelResponse aborts the backend's in-flight response for one session.
func (m *Manager) CancelResponse(sessionID string) error {
	sess, ok := m.Get(sessionID)
	if !ok {
		return core.NewNotFoundError(fmt.Sprintf("session %q not found", sessionID))
	}
	return sess.CancelResponse()
}

// Attach binds a client websocket to its session.
func (m *Manager) Attach(sessionID string, conn *websocket.Conn) error {
	sess, ok := m.Get(sessionID)
	if !ok {
		return core.NewNotFoundError(fmt.Sprintf("session %q not found", sessionID))
	}
	return sess.AttachClient(conn)
}

// Count reports registered sessions, including recently finished ones.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops accepting sessions, ends the live ones and waits for their
// actors to drain, up to the context deadline.
func (m *Manager) Shutdown(ctx context.Context) bool {
	m.mu.Lock()
	m.draining = true
	live := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		live = append(live, sess)
	}
	m.mu.Unlock()

	for _, sess := range live {
		sess.End("server-shutdown")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.wg.Wait()
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func dayPart(t time.Time) string {
	switch h := t.Hour(); {
	case h < 6:
		return "late night"
	case h < 12:
		return "morning"
	case h < 18:
		return "afternoon"
	default:
		return "evening"
	}
}
