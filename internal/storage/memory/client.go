package memory

import (
	"context"
	"sync"
	"time"
)

type Client struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func New() *Client {
	return &Client{revoked: make(map[string]time.Time)}
}

func (c *Client) Close() error { return nil }

func key(tokenID, userID string) string {
	return userID + ":" + tokenID
}

func (c *Client) Revoke(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[key(tokenID, userID)] = time.Now().Add(ttl)
	return nil
}

func (c *Client) IsRevoked(ctx context.Context, tokenID, userID string) (bool, error) {
	c.mu.RLock()
	exp, ok := c.revoked[key(tokenID, userID)]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		c.mu.Lock()
		delete(c.revoked, key(tokenID, userID))
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}
