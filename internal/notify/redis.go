package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"miniswap/internal/model"
)

// ActionsChannel carries every terminal action event.
const ActionsChannel = "miniswap:actions"

// PoolChannel carries the events that touched one pool.
func PoolChannel(pool string) string {
	return fmt.Sprintf("miniswap:pool:%s", strings.ToLower(pool))
}

// Publisher fans action events out over redis pub/sub.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewPublisher(client *redis.Client, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, logger: logger}
}

// Dial connects to redis at addr and checks the connection.
func Dial(ctx context.Context, addr string, logger *zap.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewPublisher(client, logger), nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

// Publish sends event to the global and per-pool channels in one round trip.
func (p *Publisher) Publish(ctx context.Context, event model.ActionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode action event: %w", err)
	}
	pipe := p.client.Pipeline()
	pipe.Publish(ctx, ActionsChannel, data)
	if event.Pool != "" {
		pipe.Publish(ctx, PoolChannel(event.Pool), data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish action event: %w", err)
	}
	return nil
}

// Subscribe delivers events from channel to handler until ctx ends.
// Undecodable messages are logged and skipped.
func (p *Publisher) Subscribe(ctx context.Context, channel string, handler func(model.ActionEvent)) error {
	sub := p.client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	p.logger.Info("subscribed", zap.String("channel", channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event model.ActionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				p.logger.Warn("decode action event", zap.String("channel", channel), zap.Error(err))
				continue
			}
			handler(event)
		}
	}
}
