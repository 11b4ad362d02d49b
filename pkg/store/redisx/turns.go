// Package redisx holds the volatile, low-latency side of memory: the rolling
// short-term turn window and media cooldown marks.
package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amparo-ai/amparo/pkg/core"
	"github.com/amparo-ai/amparo/pkg/core/types"
)

const (
	turnKeyPrefix = "turns:"

	defaultWindowSize = 20
	defaultTurnTTL    = 48 * time.Hour
)

// TurnCache keeps the last N conversation turns per user as a redis list,
// newest at the head.
type TurnCache struct {
	client     *redis.Client
	windowSize int
	ttl        time.Duration
}

func NewTurnCache(client *redis.Client, windowSize int, ttl time.Duration) *TurnCache {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	if ttl <= 0 {
		ttl = defaultTurnTTL
	}
	return &TurnCache{client: client, windowSize: windowSize, ttl: ttl}
}

// Append pushes a turn and trims the list back to the window size.
func (c *TurnCache) Append(ctx context.Context, userID string, turn types.Turn) error {
	val, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	key := c.key(userID)
	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, key, val)
	pipe.LTrim(ctx, key, 0, int64(c.windowSize-1))
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return core.NewCollaboratorError("turn-cache", err)
	}
	return nil
}

// Recent returns the window in spoken order, oldest first.
func (c *TurnCache) Recent(ctx context.Context, userID string) ([]types.Turn, error) {
	vals, err := c.client.LRange(ctx, c.key(userID), 0, int64(c.windowSize-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, core.NewCollaboratorError("turn-cache", err)
	}

	turns := make([]types.Turn, 0, len(vals))
	for i := len(vals) - 1; i >= 0; i-- {
		var turn types.Turn
		if err := json.Unmarshal([]byte(vals[i]), &turn); err != nil {
			// A corrupt entry loses one turn, not the window.
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (c *TurnCache) key(userID string) string {
	return turnKeyPrefix + userID
}
