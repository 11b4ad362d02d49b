package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/amparo-ai/amparo/pkg/backend/realtime"
	"github.com/amparo-ai/amparo/pkg/core/types"
	"github.com/amparo-ai/amparo/pkg/gateway/pager"
)

// MediaLibrary looks up the user's photos and records which ones were shown.
type MediaLibrary interface {
	Search(ctx context.Context, userID string, names, keywords []string) ([]types.Photo, error)
	MarkShown(ctx context.Context, photoID string) error
}

type showMedia struct {
	library MediaLibrary
	logger  *slog.Logger
}

// NewShowMedia builds the show_media executor. One photo is surfaced per
// call; nextPage walks the batch established by the previous search.
func NewShowMedia(library MediaLibrary, logger *slog.Logger) Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &showMedia{library: library, logger: logger}
}

func (e *showMedia) Name() string { return "show_media" }

func (e *showMedia) Definition() realtime.ToolDef {
	return realtime.ToolDef{
		Type:        "function",
		Name:        e.Name(),
		Description: "Show the user one photo from their library. Call with names or keywords to start a new search, or with nextPage to show the next photo from the current search.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"triggerReason": {"type": "string", "description": "Why the photo is being shown now"},
				"names": {"type": "array", "items": {"type": "string"}, "description": "People who should appear in the photo"},
				"keywords": {"type": "array", "items": {"type": "string"}, "description": "Subjects, places or occasions to match"},
				"nextPage": {"type": "boolean", "description": "Show the next photo from the current search instead of starting a new one"}
			}
		}`),
	}
}

func (e *showMedia) Execute(ctx context.Context, env Env, input map[string]any) Result {
	if env.Pager == nil {
		return failure("no_media_session")
	}
	reason := stringArg(input, "triggerReason")

	// Models sometimes snake_case the parameter despite the schema.
	if boolArg(input, "nextPage") || boolArg(input, "next_page") {
		return e.advance(ctx, env, reason)
	}

	names := stringSliceArg(input, "names")
	keywords := stringSliceArg(input, "keywords")
	photos, err := e.library.Search(ctx, env.UserID, names, keywords)
	if err != nil {
		e.logger.Error("photo search failed", "session_id", env.SessionID, "error", err)
		return failure("media_unavailable")
	}
	if len(photos) == 0 {
		return Result{Success: false, Message: "no photos matched the search"}
	}

	photo, hasMore, err := env.Pager.Start(photos)
	if err != nil {
		return failure("media_unavailable")
	}
	return e.surface(ctx, env, photo, hasMore, reason, len(photos))
}

func (e *showMedia) advance(ctx context.Context, env Env, reason string) Result {
	photo, hasMore, err := env.Pager.Advance()
	switch {
	case errors.Is(err, pager.ErrNoSession):
		return Result{Success: false, Error: "no_active_session", Message: "no photo search is in progress, search first"}
	case errors.Is(err, pager.ErrExhausted):
		return Result{Success: false, Message: "no more items"}
	case err != nil:
		return failure("media_unavailable")
	}
	return e.surface(ctx, env, photo, hasMore, reason, env.Pager.Remaining()+1)
}

func (e *showMedia) surface(ctx context.Context, env Env, photo types.Photo, hasMore bool, reason string, total int) Result {
	if err := e.library.MarkShown(ctx, photo.ID); err != nil {
		// Bookkeeping only; the photo still goes out.
		e.logger.Warn("failed to mark photo shown", "photo_id", photo.ID, "error", err)
	}

	env.emit(MediaEvent{Photos: []types.Photo{photo}, Reason: reason, Context: "photo"})

	return Result{
		Success: true,
		Payload: map[string]any{
			"photoId":   photo.ID,
			"caption":   photo.Caption,
			"names":     photo.Names,
			"hasMore":   hasMore,
			"batchSize": total,
		},
	}
}
