package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amparo-ai/amparo/pkg/backend/realtime"
	"github.com/amparo-ai/amparo/pkg/core"
	"github.com/amparo-ai/amparo/pkg/core/types"
	"github.com/amparo-ai/amparo/pkg/gateway/tools"
)

type fakeDialer struct {
	mu       sync.Mutex
	backends []*fakeBackend
	err      error
}

func (d *fakeDialer) Dial(context.Context, realtime.Config) (realtime.Session, error) {
	if d.err != nil {
		return nil, d.err
	}
	backend := newFakeBackend()
	d.mu.Lock()
	d.backends = append(d.backends, backend)
	d.mu.Unlock()
	return backend, nil
}

func (d *fakeDialer) last() *fakeBackend {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.backends) == 0 {
		return nil
	}
	return d.backends[len(d.backends)-1]
}

type fakeProfiles struct {
	identity    types.Identity
	identityErr error
	rules       []types.SafetyRule
	rulesErr    error
	music       *types.MusicPreferences
}

func (p *fakeProfiles) LoadIdentity(context.Context, string) (types.Identity, error) {
	if p.identityErr != nil {
		return types.Identity{}, p.identityErr
	}
	return p.identity, nil
}

func (p *fakeProfiles) LoadSafetyRules(context.Context, string) ([]types.SafetyRule, error) {
	return p.rules, p.rulesErr
}

func (p *fakeProfiles) LoadMusicPreferences(context.Context, string) (*types.MusicPreferences, error) {
	return p.music, nil
}

type fakeMemory struct {
	tiers   types.MemoryTiers
	loadErr error

	mu    sync.Mutex
	turns []types.Turn
}

func (m *fakeMemory) Load(context.Context, string) (types.MemoryTiers, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return types.MemoryTiers{}, m.loadErr
	}
	return m.tiers, nil
}

func (m *fakeMemory) AppendTurn(_ context.Context, _, _ string, turn types.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	return nil
}

func newTestManager(dialer *fakeDialer, profiles *fakeProfiles, memory *fakeMemory) *Manager {
	return NewManager(nil, ManagerConfig{
		Session:           Config{WriteTimeout: time.Second, PingInterval: time.Minute},
		Voice:             "warm",
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
	}, dialer, realtime.Config{}, profiles, memory, tools.NewRegistry(nil, time.Second))
}

func TestCreateSessionAssemblesInstructions(t *testing.T) {
	dialer := &fakeDialer{}
	profiles := &fakeProfiles{
		identity: types.Identity{UserID: "u1", Name: "Rosa", Age: 81, Language: "es"},
		rules:    []types.SafetyRule{{Severity: "critical", Text: "Never discuss finances."}},
	}
	memory := &fakeMemory{tiers: types.MemoryTiers{
		LongTerm: []types.MemoryFact{{Key: "garden", Value: "Loves her rose garden", Importance: 5}},
	}}
	m := newTestManager(dialer, profiles, memory)

	info, err := m.CreateSession(context.Background(), "u1", Options{})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if info.Status != StatusCreated {
		t.Fatalf("expected created status, got %s", info.Status)
	}
	defer m.End(info.SessionID, "test")

	backend := dialer.last()
	backend.events <- realtime.CreatedEvent{SessionID: "conv-1"}
	waitFor(t, time.Second, func() bool { return len(backend.snapshotUpdates()) == 1 },
		"expected initial session.update")

	instructions := backend.snapshotUpdates()[0].Instructions
	for _, want := range []string{"Rosa", "Never discuss finances.", "Loves her rose garden"} {
		if !strings.Contains(instructions, want) {
			t.Fatalf("instructions missing %q:\n%s", want, instructions)
		}
	}
}

func TestCreateSessionOptionOverrides(t *testing.T) {
	dialer := &fakeDialer{}
	profiles := &fakeProfiles{identity: types.Identity{UserID: "u1", Name: "Rosa", Language: "es"}}
	m := newTestManager(dialer, profiles, &fakeMemory{})

	info, err := m.CreateSession(context.Background(), "u1", Options{
		Voice:       "bright",
		Language:    "fr",
		MaxDuration: time.Minute,
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	defer m.End(info.SessionID, "test")

	backend := dialer.last()
	backend.events <- realtime.CreatedEvent{SessionID: "conv-opt"}
	waitFor(t, time.Second, func() bool { return len(backend.snapshotUpdates()) == 1 },
		"expected initial session.update")

	update := backend.snapshotUpdates()[0]
	if update.Voice != "bright" {
		t.Fatalf("expected voice override, got %q", update.Voice)
	}
	if !strings.Contains(update.Instructions, `language "fr"`) {
		t.Fatalf("expected language override in instructions:\n%s", update.Instructions)
	}

	if _, err := m.CreateSession(context.Background(), "u1", Options{MaxDuration: -time.Second}); err == nil {
		t.Fatal("expected negative max duration to be rejected")
	}
}

func TestCreateSessionMissingProfileDegrades(t *testing.T) {
	dialer := &fakeDialer{}
	profiles := &fakeProfiles{identityErr: core.NewNotFoundError("no such user")}
	m := newTestManager(dialer, profiles, &fakeMemory{})

	info, err := m.CreateSession(context.Background(), "stranger", Options{})
	if err != nil {
		t.Fatalf("expected degraded creation, got %v", err)
	}
	defer m.End(info.SessionID, "test")

	backend := dialer.last()
	backend.events <- realtime.CreatedEvent{SessionID: "conv-2"}
	waitFor(t, time.Second, func() bool { return len(backend.snapshotUpdates()) == 1 },
		"expected initial session.update")
	if !strings.Contains(backend.snapshotUpdates()[0].Instructions, "friend") {
		t.Fatal("expected generic companion instructions")
	}
}

func TestCreateSessionSafetyRuleFailureIsFatal(t *testing.T) {
	dialer := &fakeDialer{}
	profiles := &fakeProfiles{rulesErr: errors.New("pg down")}
	m := newTestManager(dialer, profiles, &fakeMemory{})

	if _, err := m.CreateSession(context.Background(), "u1", Options{}); err == nil {
		t.Fatal("expected creation to fail when safety rules cannot load")
	}
}

func TestCreateSessionMemoryFailureDegrades(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer, &fakeProfiles{identity: types.Identity{UserID: "u1", Name: "Rosa"}},
		&fakeMemory{loadErr: errors.New("redis down")})

	info, err := m.CreateSession(context.Background(), "u1", Options{})
	if err != nil {
		t.Fatalf("expected degraded creation, got %v", err)
	}
	m.End(info.SessionID, "test")
}

func TestEndViaManagerIsIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer, &fakeProfiles{identity: types.Identity{UserID: "u1"}}, &fakeMemory{})

	info, err := m.CreateSession(context.Background(), "u1", Options{})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	first, err := m.End(info.SessionID, "client-request")
	if err != nil {
		t.Fatalf("first End failed: %v", err)
	}
	if first.Status != StatusEnded {
		t.Fatalf("expected ended, got %s", first.Status)
	}

	second, err := m.End(info.SessionID, "client-request")
	if err != nil {
		t.Fatalf("second End failed: %v", err)
	}
	if second.Status != StatusEnded {
		t.Fatalf("expected ended on repeat, got %s", second.Status)
	}
	if _, ok := m.Get(info.SessionID); ok {
		t.Fatal("ended session still registered")
	}
}

func TestEndUnknownSession(t *testing.T) {
	m := newTestManager(&fakeDialer{}, &fakeProfiles{}, &fakeMemory{})
	info, err := m.End("nope", "test")
	if err != nil {
		t.Fatalf("End on unknown session must be a no-op, got %v", err)
	}
	if info.Status != StatusEnded {
		t.Fatalf("expected ended, got %s", info.Status)
	}
}

func TestInjectReminderRequiresActiveSession(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer, &fakeProfiles{identity: types.Identity{UserID: "u1"}}, &fakeMemory{})

	info, err := m.CreateSession(context.Background(), "u1", Options{})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	defer m.End(info.SessionID, "test")

	// Still in created state: reminder is rejected.
	if _, err := m.InjectReminder(info.SessionID, "take the blue pill at noon"); err == nil {
		t.Fatal("expected rejection before session is active")
	}

	backend := dialer.last()
	backend.events <- realtime.CreatedEvent{SessionID: "conv-3"}
	backend.events <- realtime.UpdatedEvent{}
	sess, _ := m.Get(info.SessionID)
	waitFor(t, time.Second, func() bool { return sess.Status() == StatusActive }, "session never became active")

	if _, err := m.InjectReminder(info.SessionID, "take the blue pill at noon"); err != nil {
		t.Fatalf("InjectReminder failed: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		for _, r := range backend.snapshotResponses() {
			if strings.Contains(r, "take the blue pill at noon") {
				return true
			}
		}
		return false
	}, "expected reminder directive in a response.create")
}

func TestRefreshReassemblesInstructions(t *testing.T) {
	dialer := &fakeDialer{}
	memory := &fakeMemory{}
	m := newTestManager(dialer, &fakeProfiles{identity: types.Identity{UserID: "u1", Name: "Rosa"}}, memory)

	info, err := m.CreateSession(context.Background(), "u1", Options{})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	defer m.End(info.SessionID, "test")

	backend := dialer.last()
	backend.events <- realtime.CreatedEvent{SessionID: "conv-4"}
	backend.events <- realtime.UpdatedEvent{}
	sess, _ := m.Get(info.SessionID)
	waitFor(t, time.Second, func() bool { return sess.Status() == StatusActive }, "session never became active")

	memory.mu.Lock()
	memory.tiers.LongTerm = []types.MemoryFact{{Key: "dog", Value: "Her dog is called Luna", Importance: 4}}
	memory.mu.Unlock()

	if _, err := m.Refresh(context.Background(), info.SessionID); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		updates := backend.snapshotUpdates()
		return len(updates) >= 2 && strings.Contains(updates[len(updates)-1].Instructions, "Luna")
	}, "expected refreshed instructions to include the new fact")
}

func TestShutdownDrainsSessions(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer, &fakeProfiles{identity: types.Identity{UserID: "u1"}}, &fakeMemory{})

	if _, err := m.CreateSession(context.Background(), "u1", Options{}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := m.CreateSession(context.Background(), "u2", Options{}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !m.Shutdown(ctx) {
		t.Fatal("shutdown did not drain in time")
	}

	if _, err := m.CreateSession(context.Background(), "u3", Options{}); err == nil {
		t.Fatal("expected creation to be rejected while draining")
	}
}
