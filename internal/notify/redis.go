package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"tablequeue/internal/events"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes events with PUBLISH on "<prefix>:<channel>".
type RedisNotifier struct {
	client *redis.Client
	prefix string
}

func NewRedisNotifier(client *redis.Client, prefix string) *RedisNotifier {
	return &RedisNotifier{client: client, prefix: prefix}
}

func (n *RedisNotifier) Channel(channel string) string {
	if n.prefix == "" {
		return channel
	}
	return n.prefix + ":" + channel
}

func (n *RedisNotifier) Publish(ctx context.Context, channel, eventType string, payload any) error {
	if n.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	event, err := events.NewJSONEvent(channel, eventType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.Channel(channel), data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", n.Channel(channel), err)
	}
	return nil
}
