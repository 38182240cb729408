package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func testClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRevokeAndCheck(t *testing.T) {
	c, _ := testClient(t)
	ctx := context.Background()

	revoked, err := c.IsRevoked(ctx, "tok1", "u1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Error("Expected fresh token not revoked")
	}

	if err := c.Revoke(ctx, "tok1", "u1", time.Hour); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	revoked, err = c.IsRevoked(ctx, "tok1", "u1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Error("Expected token revoked")
	}

	// Another user's token with the same id is unaffected.
	revoked, err = c.IsRevoked(ctx, "tok1", "u2")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Error("Expected other user's token not revoked")
	}
}

func TestRevocationExpires(t *testing.T) {
	c, mr := testClient(t)
	ctx := context.Background()

	if err := c.Revoke(ctx, "tok1", "u1", time.Minute); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	revoked, err := c.IsRevoked(ctx, "tok1", "u1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Error("Expected revocation entry to expire with the token")
	}
}

func TestRevokeZeroTTLIsNoop(t *testing.T) {
	c, _ := testClient(t)
	ctx := context.Background()

	if err := c.Revoke(ctx, "tok1", "u1", 0); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	revoked, err := c.IsRevoked(ctx, "tok1", "u1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Error("Expected expired token not stored")
	}
}
