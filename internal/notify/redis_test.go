package notify

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniswap/internal/model"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPoolChannelIsCaseInsensitive(t *testing.T) {
	assert.Equal(t,
		PoolChannel("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"),
		PoolChannel("0x9fe46736679d2d9a65f0992f2272de9f3c7fa6e0"))
}

func TestPublishSubscribe(t *testing.T) {
	client := setupTestRedis(t)
	pub := NewPublisher(client, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool := "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
	got := make(chan model.ActionEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- pub.Subscribe(ctx, PoolChannel(pool), func(e model.ActionEvent) { got <- e })
	}()

	// Subscription is asynchronous; publish until the subscriber sees it.
	event := model.ActionEvent{ActionID: 7, Intent: "swap", State: "succeeded", Pool: pool, Timestamp: time.Now().Unix()}
	require.Eventually(t, func() bool {
		require.NoError(t, pub.Publish(ctx, event))
		select {
		case e := <-got:
			assert.Equal(t, event, e)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
