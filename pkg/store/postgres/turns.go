package postgres

import (
	"context"

	"github.com/amparo-ai/amparo/pkg/core"
	"github.com/amparo-ai/amparo/pkg/core/types"
)

// TurnStore is the durable conversation archive. The live short-term window
// lives in redis; this table is the full history.
type TurnStore struct {
	store *Store
}

func (t *TurnStore) Append(ctx context.Context, sessionID, userID string, turn types.Turn) error {
	_, err := t.store.pool.Exec(ctx,
		`INSERT INTO conversation_turns (session_id, user_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sessionID, userID, turn.Role, turn.Text, turn.Timestamp)
	if err != nil {
		return core.NewCollaboratorError("turn-store", err)
	}
	return nil
}

// RecentBySession returns the turns of one session in spoken order.
func (t *TurnStore) RecentBySession(ctx context.Context, sessionID string, limit int) ([]types.Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := t.store.pool.Query(ctx,
		`SELECT role, content, created_at
		 FROM (SELECT role, content, created_at FROM conversation_turns
		       WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2) recent
		 ORDER BY created_at ASC`,
		sessionID, limit)
	if err != nil {
		return nil, core.NewCollaboratorError("turn-store", err)
	}
	defer rows.Close()

	var turns []types.Turn
	for rows.Next() {
		var turn types.Turn
		if err := rows.Scan(&turn.Role, &turn.Text, &turn.Timestamp); err != nil {
			return nil, core.NewCollaboratorError("turn-store", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}
