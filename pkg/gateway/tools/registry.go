// Package tools implements the closed tool dispatch table. The registry is
// resolved at startup; an unknown tool name is a typed negative result, never
// a session failure.
package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/amparo-ai/amparo/pkg/backend/realtime"
	"github.com/amparo-ai/amparo/pkg/core/types"
	"github.com/amparo-ai/amparo/pkg/gateway/pager"
)

const defaultToolTimeout = 10 * time.Second

// Result is the JSON-serializable outcome of one tool dispatch.
type Result struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Message string         `json:"message,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Encode renders the result as the function call output string.
func (r Result) Encode() string {
	raw, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"encode_failed"}`
	}
	return string(raw)
}

func failure(code string) Result {
	return Result{Success: false, Error: code}
}

// MediaEvent is pushed to the client when a tool surfaces media or audio.
type MediaEvent struct {
	Photos  []types.Photo
	Track   *types.Track
	Reason  string
	Context string
}

// Env is the per-session environment a dispatch runs in. Emit may be nil when
// no client is attached; executors must tolerate that.
type Env struct {
	SessionID string
	UserID    string
	Pager     *pager.Pager
	Emit      func(MediaEvent)
}

func (e Env) emit(ev MediaEvent) {
	if e.Emit != nil {
		e.Emit(ev)
	}
}

// Executor is one tool implementation.
type Executor interface {
	Name() string
	Definition() realtime.ToolDef
	Execute(ctx context.Context, env Env, input map[string]any) Result
}

// Registry is the closed dispatch table.
type Registry struct {
	byName  map[string]Executor
	timeout time.Duration
	logger  *slog.Logger
}

func NewRegistry(logger *slog.Logger, timeout time.Duration, executors ...Executor) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}
	r := &Registry{
		byName:  make(map[string]Executor, len(executors)),
		timeout: timeout,
		logger:  logger,
	}
	for _, ex := range executors {
		if ex == nil {
			continue
		}
		r.byName[ex.Name()] = ex
	}
	return r
}

func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byName[strings.TrimSpace(name)]
	return ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool schema advertised to the backend, in stable
// name order.
func (r *Registry) Definitions() []realtime.ToolDef {
	if r == nil {
		return nil
	}
	defs := make([]realtime.ToolDef, 0, len(r.byName))
	for _, name := range r.Names() {
		defs = append(defs, r.byName[name].Definition())
	}
	return defs
}

// Execute dispatches one tool call. Every path yields exactly one Result:
// unknown names, executor panics and collaborator timeouts all degrade to
// negative results so the conversation can continue.
func (r *Registry) Execute(ctx context.Context, env Env, name string, arguments json.RawMessage) Result {
	if r == nil {
		return failure("unknown_tool")
	}
	ex, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return failure("unknown_tool")
	}

	input := map[string]any{}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &input); err != nil {
			return failure("invalid_arguments")
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resultCh := make(chan Result, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				r.logger.Error("tool executor panicked", "tool", name, "panic", v)
				resultCh <- failure("tool_failed")
			}
		}()
		resultCh <- ex.Execute(execCtx, env, input)
	}()

	select {
	case result := <-resultCh:
		return result
	case <-execCtx.Done():
		// A hung collaborator must not stall the session's event loop.
		r.logger.Warn("tool dispatch timed out", "tool", name, "session_id", env.SessionID, "timeout", r.timeout)
		return failure("tool_timeout")
	}
}

func stringArg(input map[string]any, key string) string {
	v, _ := input[key].(string)
	return strings.TrimSpace(v)
}

func boolArg(input map[string]any, key string) bool {
	v, _ := input[key].(bool)
	return v
}

func intArg(input map[string]any, key string) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func stringSliceArg(input map[string]any, key string) []string {
	raw, ok := input[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
