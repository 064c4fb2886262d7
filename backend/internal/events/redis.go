package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes each event with PUBLISH on channel <prefix>:<kind>.
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink connects and pings the server so a bad address fails at
// startup rather than on the first event.
func NewRedisSink(ctx context.Context, opts *redis.Options, prefix string) (*RedisSink, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &RedisSink{client: client, prefix: prefix}, nil
}

func (s *RedisSink) Send(ctx context.Context, kind string, data []byte) error {
	return s.client.Publish(ctx, redisChannel(s.prefix, kind), data).Err()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

func redisChannel(prefix, kind string) string {
	return prefix + ":" + kind
}
