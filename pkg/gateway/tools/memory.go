package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/amparo-ai/amparo/pkg/backend/realtime"
	"github.com/amparo-ai/amparo/pkg/core/types"
)

// FactSaver persists a single extracted memory fact.
type FactSaver interface {
	SaveFact(ctx context.Context, userID string, fact types.MemoryFact) error
}

type extractMemory struct {
	memory FactSaver
	logger *slog.Logger
	now    func() time.Time
}

// NewExtractMemory builds the extract_memory executor.
func NewExtractMemory(memory FactSaver, logger *slog.Logger) Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &extractMemory{memory: memory, logger: logger, now: time.Now}
}

func (e *extractMemory) Name() string { return "extract_memory" }

func (e *extractMemory) Definition() realtime.ToolDef {
	return realtime.ToolDef{
		Type:        "function",
		Name:        e.Name(),
		Description: "Save a durable fact the user mentioned, such as a preference, a person, a health detail or an event.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"memoryType": {"type": "string", "enum": ["preference", "person", "health", "event", "other"]},
				"key": {"type": "string", "description": "Short stable identifier for the fact"},
				"value": {"type": "string", "description": "The fact itself, one sentence"},
				"importance": {"type": "integer", "minimum": 1, "maximum": 5}
			},
			"required": ["memoryType", "key", "value"]
		}`),
	}
}

func (e *extractMemory) Execute(ctx context.Context, env Env, input map[string]any) Result {
	key := stringArg(input, "key")
	value := stringArg(input, "value")
	if key == "" || value == "" {
		return failure("missing_required_field")
	}

	fact := types.MemoryFact{
		Type:       stringArg(input, "memoryType"),
		Key:        key,
		Value:      value,
		Importance: intArg(input, "importance"),
		CreatedAt:  e.now().UTC(),
	}
	if fact.Type == "" {
		fact.Type = "other"
	}
	if fact.Importance < 1 || fact.Importance > 5 {
		fact.Importance = 3
	}

	if err := e.memory.SaveFact(ctx, env.UserID, fact); err != nil {
		e.logger.Error("failed to save memory fact", "session_id", env.SessionID, "key", key, "error", err)
		return failure("storage_unavailable")
	}

	return Result{
		Success: true,
		Payload: map[string]any{"saved": true, "key": key, "memoryType": fact.Type},
	}
}
