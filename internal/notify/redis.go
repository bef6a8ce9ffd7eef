package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "parkshare:reservation-events"

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher fans events out over a Redis pub/sub channel.
type RedisPublisher struct {
	client  redisPublisher
	channel string
}

func NewRedisPublisher(client redisPublisher, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
