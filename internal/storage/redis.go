package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPersister stores the collection under a single key. SET replaces the
// value atomically.
type RedisPersister struct {
	client *redis.Client
	key    string
}

func NewRedisPersister(ctx context.Context, redisURL, key string) (*RedisPersister, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		// Fallback to a bare host:port address
		opt = &redis.Options{Addr: redisURL}
	}
	if key == "" {
		key = DefaultCollection
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisPersister{client: client, key: key}, nil
}

func (p *RedisPersister) Load(ctx context.Context) ([]byte, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p.key, err)
	}
	return data, nil
}

func (p *RedisPersister) Save(ctx context.Context, data []byte) error {
	if err := p.client.Set(ctx, p.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", p.key, err)
	}
	return nil
}

func (p *RedisPersister) Close() error {
	return p.client.Close()
}
