// Package keyring rotates explorer API keys round-robin. With Redis the
// position is shared by every replica; without it each process counts on its
// own.
package keyring

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

const counterKey = "tron-router:explorer-key"

type Ring struct {
	keys  []string
	rdb   redis.UniversalClient
	local atomic.Uint64
}

// New builds a ring over keys. rdb may be nil.
func New(keys []string, rdb redis.UniversalClient) *Ring {
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	return &Ring{keys: clean, rdb: rdb}
}

// Len is the number of usable keys.
func (r *Ring) Len() int { return len(r.keys) }

// Next returns the key for the next request, or "" when the ring is empty.
// A Redis failure falls back to the local counter.
func (r *Ring) Next(ctx context.Context) string {
	switch len(r.keys) {
	case 0:
		return ""
	case 1:
		return r.keys[0]
	}
	if r.rdb != nil {
		if n, err := r.rdb.Incr(ctx, counterKey).Result(); err == nil {
			return r.keys[uint64(n-1)%uint64(len(r.keys))]
		}
	}
	n := r.local.Add(1) - 1
	return r.keys[n%uint64(len(r.keys))]
}
