package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/amparo-ai/amparo/pkg/core"
	"github.com/amparo-ai/amparo/pkg/core/types"
)

const (
	midTermWindow = 14 * 24 * time.Hour
	midTermLimit  = 20
	longTermLimit = 50
	searchLimit   = 10
)

// MemoryStore persists extracted facts and serves the durable memory tiers.
type MemoryStore struct {
	store *Store
}

// SaveFact upserts by (user, key) so a repeated extraction refreshes the
// fact instead of accumulating duplicates.
func (m *MemoryStore) SaveFact(ctx context.Context, userID string, fact types.MemoryFact) error {
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = time.Now().UTC()
	}
	_, err := m.store.pool.Exec(ctx,
		`INSERT INTO memory_facts (id, user_id, fact_type, fact_key, fact_value, importance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, fact_key) DO UPDATE
		 SET fact_type = EXCLUDED.fact_type,
		     fact_value = EXCLUDED.fact_value,
		     importance = EXCLUDED.importance,
		     created_at = EXCLUDED.created_at`,
		uuid.NewString(), userID, fact.Type, fact.Key, fact.Value, fact.Importance, fact.CreatedAt)
	if err != nil {
		return core.NewCollaboratorError("memory-store", err)
	}
	return nil
}

// LoadMidTerm returns recently extracted facts, newest first.
func (m *MemoryStore) LoadMidTerm(ctx context.Context, userID string) ([]types.MemoryFact, error) {
	return m.queryFacts(ctx,
		`SELECT fact_type, fact_key, fact_value, importance, created_at
		 FROM memory_facts
		 WHERE user_id = $1 AND created_at > $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		userID, time.Now().UTC().Add(-midTermWindow), midTermLimit)
}

// LoadLongTerm returns the most important durable facts.
func (m *MemoryStore) LoadLongTerm(ctx context.Context, userID string) ([]types.MemoryFact, error) {
	return m.queryFacts(ctx,
		`SELECT fact_type, fact_key, fact_value, importance, created_at
		 FROM memory_facts
		 WHERE user_id = $1
		 ORDER BY importance DESC, created_at DESC
		 LIMIT $2`,
		userID, longTermLimit)
}

// SearchLongTerm does a case-insensitive substring match over keys and values.
func (m *MemoryStore) SearchLongTerm(ctx context.Context, userID, query string) ([]types.MemoryFact, error) {
	return m.queryFacts(ctx,
		`SELECT fact_type, fact_key, fact_value, importance, created_at
		 FROM memory_facts
		 WHERE user_id = $1 AND (fact_key ILIKE '%' || $2 || '%' OR fact_value ILIKE '%' || $2 || '%')
		 ORDER BY importance DESC, created_at DESC
		 LIMIT $3`,
		userID, query, searchLimit)
}

func (m *MemoryStore) queryFacts(ctx context.Context, sql string, args ...any) ([]types.MemoryFact, error) {
	rows, err := m.store.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, core.NewCollaboratorError("memory-store", err)
	}
	defer rows.Close()

	var facts []types.MemoryFact
	for rows.Next() {
		var f types.MemoryFact
		if err := rows.Scan(&f.Type, &f.Key, &f.Value, &f.Importance, &f.CreatedAt); err != nil {
			return nil, core.NewCollaboratorError("memory-store", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
