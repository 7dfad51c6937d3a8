package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wovenlab/shuttle/pkg/adapters/redis"
	"github.com/wovenlab/shuttle/pkg/domain"
)

func newTestClient(t *testing.T) *backend.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRecorderAppendAndTrail(t *testing.T) {
	rec := redis.NewRecorder(newTestClient(t), "shuttle:")
	ctx := context.Background()

	entries := []domain.HistoryEntry{
		{Node: "start", Tool: "transition_to_work", Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)},
		{Node: "work", Tool: "flaky", Attempt: 1, Err: "upstream down"},
		{Node: "work", Tool: "transition_to_done", Attempt: 2},
	}
	for _, e := range entries {
		require.NoError(t, rec.Append(ctx, "run-1", e))
	}

	trail, err := rec.Trail(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, "transition_to_work", trail[0].Tool)
	assert.Equal(t, "upstream down", trail[1].Err)
	assert.Equal(t, 2, trail[2].Attempt)
}

func TestRecorderUnknownRun(t *testing.T) {
	rec := redis.NewRecorder(newTestClient(t), "shuttle:")
	_, err := rec.Trail(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRecorderIsolatesRuns(t *testing.T) {
	rec := redis.NewRecorder(newTestClient(t), "shuttle:")
	ctx := context.Background()

	require.NoError(t, rec.Append(ctx, "a", domain.HistoryEntry{Node: "n1"}))
	require.NoError(t, rec.Append(ctx, "b", domain.HistoryEntry{Node: "n2"}))

	trail, err := rec.Trail(ctx, "a")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "n1", trail[0].Node)
}

func TestRecorderTTLExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	rec := redis.NewRecorder(client, "shuttle:", redis.WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, rec.Append(ctx, "run-ttl", domain.HistoryEntry{Node: "start"}))

	_, err := rec.Trail(ctx, "run-ttl")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = rec.Trail(ctx, "run-ttl")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}
