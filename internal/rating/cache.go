package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	id "flagledger/pkg/domain"
)

// Cache stores rating snapshots in Redis. It is strictly best-effort: misses
// and errors fall through to recomputation, and approvals invalidate so the
// TTL only bounds staleness from out-of-band changes.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(userID id.UserID) string {
	return fmt.Sprintf("rating:%s", userID.String())
}

// Get returns a cached snapshot and whether one was found.
func (c *Cache) Get(ctx context.Context, userID id.UserID) (UserRating, bool) {
	raw, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "rating cache read failed",
				"user_id", userID.String(),
				"error", err,
			)
		}
		return UserRating{}, false
	}
	var snapshot UserRating
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		c.logger.WarnContext(ctx, "rating cache entry corrupt",
			"user_id", userID.String(),
			"error", err,
		)
		return UserRating{}, false
	}
	return snapshot, true
}

// Set stores a snapshot with the configured TTL.
func (c *Cache) Set(ctx context.Context, snapshot UserRating) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		c.logger.WarnContext(ctx, "rating snapshot marshal failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(snapshot.UserID), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "rating cache write failed",
			"user_id", snapshot.UserID.String(),
			"error", err,
		)
	}
}

// Invalidate drops the cached snapshot after an approval changes the ledger.
func (c *Cache) Invalidate(ctx context.Context, userID id.UserID) error {
	return c.client.Del(ctx, cacheKey(userID)).Err()
}
