// Package redis feeds the triage queue from a Redis list. It is an optional
// intake for deployments where the HTTP front end is not the only conduit;
// payloads are the same raw event maps the HTTP layer submits.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Config configures the Redis consumer.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
}

// Consumer wraps a Redis list popper.
type Consumer struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
}

// NewConsumer creates a Redis consumer for list-based queues.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Consumer{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
	}, nil
}

// Pop pops one message from the list. A nil, nil return means the blocking
// wait timed out with no message.
func (c *Consumer) Pop(ctx context.Context) ([]byte, error) {
	res, err := c.client.BLPop(ctx, c.blockTimeout, c.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Run pops messages until ctx is done, submitting each decoded payload via
// submit. Undecodable messages and queue-full rejections are logged and
// dropped; transient Redis errors back off briefly.
func (c *Consumer) Run(ctx context.Context, submit func(map[string]any) bool, log *slog.Logger) {
	log = log.With("intake", "redis", "key", c.key)
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := c.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("redis pop failed", "err", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		if msg == nil {
			continue
		}

		var raw map[string]any
		if err := json.Unmarshal(msg, &raw); err != nil {
			log.Warn("dropping undecodable intake message", "err", err)
			continue
		}
		if !submit(raw) {
			log.Warn("triage queue full, dropping intake message")
		}
	}
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	return c.client.Close()
}
