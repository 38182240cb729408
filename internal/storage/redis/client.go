package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// Raw exposes the underlying go-redis client for components that keep
// their own key namespace (push subscriptions).
func (c *Client) Raw() *redis.Client {
	return c.cli
}

func key(tokenID, userID string) string {
	return "revoked:" + userID + ":" + tokenID
}

// Revoke stores the token id with a TTL matching the token's remaining
// lifetime; after that the expiry check makes the entry redundant.
func (c *Client) Revoke(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.cli.Set(ctx, key(tokenID, userID), "1", ttl).Err()
}

// IsRevoked reports whether the token id was revoked.
func (c *Client) IsRevoked(ctx context.Context, tokenID, userID string) (bool, error) {
	_, err := c.cli.Get(ctx, key(tokenID, userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
