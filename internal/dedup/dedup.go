// Package dedup remembers which transactions this gateway has already
// broadcast so a repeated submission never reaches a backend twice.
package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tron-router:broadcast:"

// DefaultTTL is how long a broadcast transaction ID is remembered. Signed
// transactions expire on chain well before this.
const DefaultTTL = 24 * time.Hour

// Dial connects to Redis and verifies the connection.
func Dial(redisURL, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Guard checks and records broadcast transaction IDs. A nil *Guard allows
// everything and records nothing.
type Guard struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// New creates a Guard backed by rdb.
func New(rdb redis.UniversalClient, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{rdb: rdb, ttl: ttl}
}

// Claim reserves txID for broadcasting. It returns false when the ID was
// already claimed or recorded. Redis errors fail open.
func (g *Guard) Claim(ctx context.Context, txID string) bool {
	if g == nil {
		return true
	}
	ok, err := g.rdb.SetNX(ctx, keyPrefix+txID, "pending", g.ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// Release drops a claim after a failed broadcast so it may be retried.
func (g *Guard) Release(ctx context.Context, txID string) {
	if g == nil {
		return
	}
	g.rdb.Del(ctx, keyPrefix+txID) //nolint:errcheck
}

// Record marks txID as broadcast.
func (g *Guard) Record(ctx context.Context, txID string) {
	if g == nil || txID == "" {
		return
	}
	g.rdb.Set(ctx, keyPrefix+txID, "sent", g.ttl) //nolint:errcheck
}

// AlreadySent reports whether txID was recorded as broadcast.
func (g *Guard) AlreadySent(ctx context.Context, txID string) bool {
	if g == nil {
		return false
	}
	v, err := g.rdb.Get(ctx, keyPrefix+txID).Result()
	return err == nil && v == "sent"
}
