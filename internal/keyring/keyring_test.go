package keyring

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyRing(t *testing.T) {
	r := New([]string{" ", ""}, nil)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, "", r.Next(context.Background()))
}

func TestSingleKey(t *testing.T) {
	r := New([]string{"only"}, nil)
	for i := 0; i < 3; i++ {
		assert.Equal(t, "only", r.Next(context.Background()))
	}
}

func TestLocalRotation(t *testing.T) {
	r := New([]string{"a", " b ", "c"}, nil)
	var got []string
	for i := 0; i < 5; i++ {
		got = append(got, r.Next(context.Background()))
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b"}, got)
}

func TestSharedRotation(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	// Two replicas share one counter.
	r1 := New([]string{"a", "b"}, rdb)
	r2 := New([]string{"a", "b"}, rdb)
	ctx := context.Background()

	assert.Equal(t, "a", r1.Next(ctx))
	assert.Equal(t, "b", r2.Next(ctx))
	assert.Equal(t, "a", r2.Next(ctx))
	assert.Equal(t, "b", r1.Next(ctx))

	n, err := rdb.Get(ctx, counterKey).Int()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRedisDownFallsBack(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	mr.Close()

	r := New([]string{"a", "b"}, rdb)
	assert.Equal(t, "a", r.Next(context.Background()))
	assert.Equal(t, "b", r.Next(context.Background()))
}
