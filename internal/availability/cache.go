package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps a provider's booked hours for one day in Redis so repeated
// availability lookups skip Postgres. Only the booked set is cached;
// the "is this slot still in the future" half is recomputed per request,
// so entries do not go stale as the clock moves.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache wraps a Redis client, or returns nil when the client is nil
// so callers can treat caching as optional.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func dayKey(providerID int64, day time.Time) string {
	return fmt.Sprintf("availability:%d:%s", providerID, day.Format("2006-01-02"))
}

// BookedHours returns the cached booked-hour set, or ok=false on a miss.
func (c *Cache) BookedHours(ctx context.Context, providerID int64, day time.Time) ([]time.Time, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, dayKey(providerID, day)).Bytes()
	if err != nil {
		return nil, false
	}
	var hours []time.Time
	if err := json.Unmarshal(raw, &hours); err != nil {
		return nil, false
	}
	return hours, true
}

// StoreBookedHours caches the booked-hour set for a provider day.
func (c *Cache) StoreBookedHours(ctx context.Context, providerID int64, day time.Time, hours []time.Time) error {
	if c == nil {
		return nil
	}
	if hours == nil {
		hours = []time.Time{}
	}
	raw, err := json.Marshal(hours)
	if err != nil {
		return fmt.Errorf("availability: marshal cache entry: %w", err)
	}
	if err := c.client.Set(ctx, dayKey(providerID, day), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("availability: cache set: %w", err)
	}
	return nil
}

// InvalidateDay drops the cached entry after a booking or cancellation.
func (c *Cache) InvalidateDay(ctx context.Context, providerID int64, day time.Time) error {
	if c == nil {
		return nil
	}
	if err := c.client.Del(ctx, dayKey(providerID, day)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("availability: cache invalidate: %w", err)
	}
	return nil
}
