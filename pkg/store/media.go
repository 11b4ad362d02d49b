package store

import (
	"context"

	"github.com/amparo-ai/amparo/pkg/core/types"
	"github.com/amparo-ai/amparo/pkg/store/postgres"
	"github.com/amparo-ai/amparo/pkg/store/redisx"
)

// MediaGateway fronts the photo library with a redis cooldown so the same
// photos do not dominate back-to-back searches.
type MediaGateway struct {
	photos    *postgres.MediaStore
	cooldowns *redisx.Cooldowns
}

func NewMediaGateway(photos *postgres.MediaStore, cooldowns *redisx.Cooldowns) *MediaGateway {
	return &MediaGateway{photos: photos, cooldowns: cooldowns}
}

// Search queries the photo library and drops photos shown within the
// cooldown window. The cooldown is advisory: when every match is on
// cooldown the full result set comes back rather than nothing.
func (g *MediaGateway) Search(ctx context.Context, userID string, names, keywords []string) ([]types.Photo, error) {
	photos, err := g.photos.Search(ctx, userID, names, keywords)
	if err != nil {
		return nil, err
	}
	if g.cooldowns == nil || len(photos) == 0 {
		return photos, nil
	}

	ids := make([]string, len(photos))
	for i := range photos {
		ids[i] = photos[i].ID
	}
	keep := make(map[string]struct{}, len(ids))
	for _, id := range g.cooldowns.FilterRecent(ctx, ids) {
		keep[id] = struct{}{}
	}

	filtered := photos[:0]
	for _, photo := range photos {
		if _, ok := keep[photo.ID]; ok {
			filtered = append(filtered, photo)
		}
	}
	return filtered, nil
}

// MarkShown bumps the durable counter and starts the cooldown clock.
func (g *MediaGateway) MarkShown(ctx context.Context, photoID string) error {
	if err := g.photos.MarkShown(ctx, photoID); err != nil {
		return err
	}
	if g.cooldowns != nil {
		_ = g.cooldowns.MarkShown(ctx, photoID)
	}
	return nil
}
