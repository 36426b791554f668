package services

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingHandler fails its first failures calls, then succeeds
type failingHandler struct {
	failures int
	calls    int
}

func (h *failingHandler) Handle(_ context.Context, _ *models.NotificationTask) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("smtp unavailable")
	}
	return nil
}

func newTestQueue(t *testing.T, maxDeliveries int64) (*RedisNotificationQueue, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	queue := NewRedisNotificationQueue(client, RedisQueueConfig{
		Stream:        "notifications:test",
		Group:         "mailers",
		Consumer:      "worker-1",
		MaxDeliveries: maxDeliveries,
	})
	// claim failed entries immediately
	queue.claimMinIdle = 0
	require.NoError(t, queue.ensureGroup(context.Background()))
	return queue, client
}

func pendingCount(t *testing.T, client *redis.Client, q *RedisNotificationQueue) int64 {
	t.Helper()
	summary, err := client.XPending(context.Background(), q.stream, q.group).Result()
	require.NoError(t, err)
	return summary.Count
}

func TestQueueRedeliversFailedEntries(t *testing.T) {
	ctx := context.Background()
	queue, client := newTestQueue(t, 5)
	require.NoError(t, queue.Handle(ctx, openingTask("asha@example.com")))

	handler := &failingHandler{failures: 1}
	require.NoError(t, queue.readBatch(ctx, handler))
	assert.Equal(t, 1, handler.calls)
	assert.Equal(t, int64(1), pendingCount(t, client, queue), "failed entry stays pending")

	redelivered, err := queue.reclaim(ctx, handler)
	require.NoError(t, err)
	assert.Equal(t, 1, redelivered)
	assert.Equal(t, 2, handler.calls)
	assert.Equal(t, int64(0), pendingCount(t, client, queue), "successful redelivery is acknowledged")
}

func TestQueueDropsEntriesPastDeliveryCap(t *testing.T) {
	ctx := context.Background()
	queue, client := newTestQueue(t, 2)
	require.NoError(t, queue.Handle(ctx, openingTask("asha@example.com")))

	handler := &failingHandler{failures: 100}
	require.NoError(t, queue.readBatch(ctx, handler))
	_, err := queue.reclaim(ctx, handler)
	require.NoError(t, err)
	assert.Equal(t, 2, handler.calls)
	assert.Equal(t, int64(1), pendingCount(t, client, queue))

	redelivered, err := queue.reclaim(ctx, handler)
	require.NoError(t, err)
	assert.Zero(t, redelivered)
	assert.Equal(t, 2, handler.calls, "exhausted entry is not handled again")
	assert.Equal(t, int64(0), pendingCount(t, client, queue))
}

func TestQueueAcknowledgesMalformedEntries(t *testing.T) {
	ctx := context.Background()
	queue, client := newTestQueue(t, 5)
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: queue.stream,
		Values: map[string]interface{}{"task": "{"},
	}).Err())

	handler := &failingHandler{}
	require.NoError(t, queue.readBatch(ctx, handler))
	assert.Zero(t, handler.calls)
	assert.Equal(t, int64(0), pendingCount(t, client, queue))
}
