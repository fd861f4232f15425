package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yourhelpa/helpa-server-go/internal/config"
)

// Client is the shared connection used for session locks and webhook rate
// limits. Only one server instance may run without it.
type Client struct {
	*redis.Client
}

func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = config.RedisConnectTimeout

	c := &Client{redis.NewClient(opts)}

	ctx, cancel := context.WithTimeout(ctx, config.RedisConnectTimeout)
	defer cancel()
	if err := c.Healthy(ctx); err != nil {
		_ = c.Client.Close()
		return nil, err
	}
	return c, nil
}

// Healthy pings the server.
func (c *Client) Healthy(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// SessionLockKey is the key guarding read-modify-write of one user's session.
func SessionLockKey(userID string) string {
	return "lock:session:" + userID
}

func RateLimitKey(scope, id string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, id)
}
