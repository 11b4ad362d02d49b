package tools

import (
	"log/slog"
	"time"
)

// Deps carries the collaborators behind the standard tool set.
type Deps struct {
	Memory  FactSaver
	Alerts  AlertSink
	Media   MediaLibrary
	Music   MusicProvider
	Logger  *slog.Logger
	Timeout time.Duration
}

// NewDefaultRegistry wires the five standard tools. The table is closed
// after this call.
func NewDefaultRegistry(deps Deps) *Registry {
	return NewRegistry(deps.Logger, deps.Timeout,
		NewExtractMemory(deps.Memory, deps.Logger),
		NewRaiseSafetyAlert(deps.Alerts, deps.Logger),
		NewShowMedia(deps.Media, deps.Logger),
		NewPlayAudio(deps.Music, deps.Logger),
		NewStopAudio(),
	)
}
