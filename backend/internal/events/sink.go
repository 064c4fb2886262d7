package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Backends accepted by Config.Type.
const (
	BackendNone  = "none"
	BackendNATS  = "nats"
	BackendRedis = "redis"
)

// Config selects and configures the event backend.
type Config struct {
	Type          string
	Prefix        string
	Buffer        int
	NATSURL       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewSink builds the Sink named by cfg.Type.
func NewSink(ctx context.Context, cfg Config) (Sink, error) {
	switch cfg.Type {
	case "", BackendNone:
		return NopSink{}, nil
	case BackendNATS:
		return NewNATSSink(cfg.NATSURL, cfg.Prefix)
	case BackendRedis:
		return NewRedisSink(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.Prefix)
	}
	return nil, fmt.Errorf("unknown events backend %q", cfg.Type)
}
