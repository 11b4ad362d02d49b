package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cooldownKeyPrefix = "shown:"
	defaultCooldown   = 2 * time.Hour
)

// Cooldowns marks photos as recently shown so back-to-back searches don't
// keep surfacing the same ones. Purely advisory; any failure means no
// filtering, never a failed search.
type Cooldowns struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCooldowns(client *redis.Client, ttl time.Duration) *Cooldowns {
	if ttl <= 0 {
		ttl = defaultCooldown
	}
	return &Cooldowns{client: client, ttl: ttl}
}

func (c *Cooldowns) MarkShown(ctx context.Context, photoID string) error {
	return c.client.Set(ctx, cooldownKeyPrefix+photoID, 1, c.ttl).Err()
}

// FilterRecent drops photo IDs still inside the cooldown window. If every
// candidate is cooling down, the original list comes back unchanged.
func (c *Cooldowns) FilterRecent(ctx context.Context, photoIDs []string) []string {
	if len(photoIDs) == 0 {
		return photoIDs
	}

	pipe := c.client.Pipeline()
	checks := make([]*redis.IntCmd, len(photoIDs))
	for i, id := range photoIDs {
		checks[i] = pipe.Exists(ctx, cooldownKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return photoIDs
	}

	kept := make([]string, 0, len(photoIDs))
	for i, check := range checks {
		if check.Val() == 0 {
			kept = append(kept, photoIDs[i])
		}
	}
	if len(kept) == 0 {
		return photoIDs
	}
	return kept
}
