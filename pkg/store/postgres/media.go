package postgres

import (
	"context"

	"github.com/amparo-ai/amparo/pkg/core"
	"github.com/amparo-ai/amparo/pkg/core/types"
)

const photoSearchLimit = 25

// MediaStore serves the user's photo library.
type MediaStore struct {
	store *Store
}

// Search matches photos by people and keywords. Photos shown least and
// longest ago sort first, so repeat searches rotate through the library.
func (m *MediaStore) Search(ctx context.Context, userID string, names, keywords []string) ([]types.Photo, error) {
	if names == nil {
		names = []string{}
	}
	if keywords == nil {
		keywords = []string{}
	}
	rows, err := m.store.pool.Query(ctx,
		`SELECT id, url, caption, names, keywords, times_shown, last_shown_at
		 FROM photos
		 WHERE user_id = $1
		   AND (cardinality($2::text[]) = 0 OR names && $2::text[])
		   AND (cardinality($3::text[]) = 0 OR keywords && $3::text[])
		 ORDER BY times_shown ASC, last_shown_at ASC NULLS FIRST, id
		 LIMIT $4`,
		userID, names, keywords, photoSearchLimit)
	if err != nil {
		return nil, core.NewCollaboratorError("media-store", err)
	}
	defer rows.Close()

	var photos []types.Photo
	for rows.Next() {
		var p types.Photo
		if err := rows.Scan(&p.ID, &p.URL, &p.Caption, &p.Names, &p.Keywords, &p.TimesShown, &p.LastShownAt); err != nil {
			return nil, core.NewCollaboratorError("media-store", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// MarkShown bumps the shown counter and timestamp for one photo.
func (m *MediaStore) MarkShown(ctx context.Context, photoID string) error {
	_, err := m.store.pool.Exec(ctx,
		`UPDATE photos SET times_shown = times_shown + 1, last_shown_at = now() WHERE id = $1`, photoID)
	if err != nil {
		return core.NewCollaboratorError("media-store", err)
	}
	return nil
}
