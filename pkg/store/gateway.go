// Package store composes the postgres and redis layers into the memory
// gateway the session manager talks to.
package store

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/amparo-ai/amparo/pkg/core/types"
	"github.com/amparo-ai/amparo/pkg/store/postgres"
	"github.com/amparo-ai/amparo/pkg/store/redisx"
)

// MemoryGateway fronts the three memory tiers: the redis turn window
// (short-term), recent facts (mid-term) and durable facts (long-term).
type MemoryGateway struct {
	facts   *postgres.MemoryStore
	turns   *redisx.TurnCache
	archive *postgres.TurnStore
	logger  *slog.Logger
}

func NewMemoryGateway(facts *postgres.MemoryStore, turns *redisx.TurnCache, archive *postgres.TurnStore, logger *slog.Logger) *MemoryGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryGateway{facts: facts, turns: turns, archive: archive, logger: logger}
}

// Load fetches all three tiers in parallel. The tiers are independent, so
// one slow store does not serialize the others.
func (g *MemoryGateway) Load(ctx context.Context, userID string) (types.MemoryTiers, error) {
	var tiers types.MemoryTiers

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		recent, err := g.turns.Recent(egCtx, userID)
		if err != nil {
			return err
		}
		tiers.ShortTerm = recent
		return nil
	})
	eg.Go(func() error {
		facts, err := g.facts.LoadMidTerm(egCtx, userID)
		if err != nil {
			return err
		}
		tiers.MidTerm = facts
		return nil
	})
	eg.Go(func() error {
		facts, err := g.facts.LoadLongTerm(egCtx, userID)
		if err != nil {
			return err
		}
		tiers.LongTerm = facts
		return nil
	})

	if err := eg.Wait(); err != nil {
		return types.MemoryTiers{}, err
	}
	return tiers, nil
}

// AppendTurn records a finalized turn in the rolling window and the durable
// archive. The archive write is best effort; the live window is the contract.
func (g *MemoryGateway) AppendTurn(ctx context.Context, sessionID, userID string, turn types.Turn) error {
	if err := g.turns.Append(ctx, userID, turn); err != nil {
		return err
	}
	if err := g.archive.Append(ctx, sessionID, userID, turn); err != nil {
		g.logger.Warn("failed to archive conversation turn", "session_id", sessionID, "error", err)
	}
	return nil
}

func (g *MemoryGateway) SaveFact(ctx context.Context, userID string, fact types.MemoryFact) error {
	return g.facts.SaveFact(ctx, userID, fact)
}

func (g *MemoryGateway) SearchLongTerm(ctx context.Context, userID, query string) ([]types.MemoryFact, error) {
	return g.facts.SearchLongTerm(ctx, userID, query)
}
