package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a test Redis client using miniredis
func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := &Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = NewClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestClient_JSON(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.SetJSON(ctx, "branch:1", []string{"Hot", "Warm"}, time.Minute))

	var got []string
	require.NoError(t, client.GetJSON(ctx, "branch:1", &got))
	assert.Equal(t, []string{"Hot", "Warm"}, got)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, client.GetJSON(ctx, "branch:1", &got), ErrMiss)
}

func TestClient_Delete(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.SetJSON(ctx, "k", 1, 0))
	require.NoError(t, client.Delete(ctx, "k"))

	var v int
	assert.ErrorIs(t, client.GetJSON(ctx, "k", &v), ErrMiss)
}

func TestClient_AddToStream(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	id, err := client.AddToStream(ctx, "calendar:sync", map[string]any{"appointment_id": "a1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := mr.Stream("calendar:sync")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"appointment_id", "a1"}, entries[0].Values)
}
