package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/amparo-ai/amparo/pkg/backend/realtime"
	"github.com/amparo-ai/amparo/pkg/core/types"
)

// MusicProvider resolves a spoken request to a playable track or station.
type MusicProvider interface {
	Search(ctx context.Context, identifier, kind string) (*types.Track, error)
}

type playAudio struct {
	music  MusicProvider
	logger *slog.Logger
}

// NewPlayAudio builds the play_audio executor.
func NewPlayAudio(music MusicProvider, logger *slog.Logger) Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &playAudio{music: music, logger: logger}
}

func (e *playAudio) Name() string { return "play_audio" }

func (e *playAudio) Definition() realtime.ToolDef {
	return realtime.ToolDef{
		Type:        "function",
		Name:        e.Name(),
		Description: "Start playing music for the user. Identify the song, artist, genre or station they asked for.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"identifier": {"type": "string", "description": "Song title, artist, genre or station name"},
				"kind": {"type": "string", "enum": ["song", "artist", "genre", "station"]},
				"reason": {"type": "string", "description": "Why this was chosen"}
			},
			"required": ["identifier"]
		}`),
	}
}

func (e *playAudio) Execute(ctx context.Context, env Env, input map[string]any) Result {
	identifier := stringArg(input, "identifier")
	if identifier == "" {
		return failure("missing_required_field")
	}
	kind := stringArg(input, "kind")

	track, err := e.music.Search(ctx, identifier, kind)
	if err != nil {
		e.logger.Error("music search failed", "session_id", env.SessionID, "identifier", identifier, "error", err)
		return failure("music_unavailable")
	}
	if track == nil {
		return Result{Success: false, Message: "nothing matched that request"}
	}

	env.emit(MediaEvent{Track: track, Reason: stringArg(input, "reason"), Context: "audio-play"})

	return Result{
		Success: true,
		Payload: map[string]any{"trackId": track.ID, "title": track.Title, "artist": track.Artist},
	}
}

type stopAudio struct{}

// NewStopAudio builds the stop_audio executor.
func NewStopAudio() Executor { return stopAudio{} }

func (stopAudio) Name() string { return "stop_audio" }

func (stopAudio) Definition() realtime.ToolDef {
	return realtime.ToolDef{
		Type:        "function",
		Name:        "stop_audio",
		Description: "Stop any music that is currently playing, for example when the user asks to stop or wants to talk.",
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
	}
}

func (stopAudio) Execute(_ context.Context, env Env, input map[string]any) Result {
	env.emit(MediaEvent{Reason: stringArg(input, "reason"), Context: "audio-stop"})
	return Result{Success: true, Payload: map[string]any{"stopped": true}}
}
