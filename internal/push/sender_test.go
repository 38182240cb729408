package push

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testSender(t *testing.T) (*Sender, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewSender(rdb, nil), mr
}

func TestSubscribeStoresSubscription(t *testing.T) {
	s, mr := testSender(t)

	var sub Subscription
	sub.Endpoint = "https://push.example/ep1"
	sub.Keys.P256dh = "p"
	sub.Keys.Auth = "a"
	if err := s.Subscribe(context.Background(), "u1", sub); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	list, err := mr.List("push:subs:u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 subscription, got %d", len(list))
	}
	if mr.TTL("push:subs:u1") <= 0 {
		t.Error("Expected a TTL on the subscription list")
	}
}

func TestSubscribeCapsPerUser(t *testing.T) {
	s, mr := testSender(t)

	for i := 0; i < maxSubsPerUser+3; i++ {
		var sub Subscription
		sub.Endpoint = fmt.Sprintf("https://push.example/ep%d", i)
		if err := s.Subscribe(context.Background(), "u1", sub); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	}

	list, err := mr.List("push:subs:u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != maxSubsPerUser {
		t.Errorf("Expected %d subscriptions, got %d", maxSubsPerUser, len(list))
	}
}

func TestNilSenderIsNoop(t *testing.T) {
	var s *Sender
	if err := s.Subscribe(context.Background(), "u1", Subscription{}); err != nil {
		t.Errorf("Expected nil sender Subscribe to be a no-op, got %v", err)
	}
	s.Notify(context.Background(), "u1", nil)
	if s.PublicKey() != "" {
		t.Error("Expected empty public key on nil sender")
	}
}

func TestSenderWithoutKeysDoesNotSend(t *testing.T) {
	s, _ := testSender(t)
	// No VAPID keys configured: Notify must return without touching the
	// network.
	s.Notify(context.Background(), "u1", nil)
	if s.PublicKey() != "" {
		t.Error("Expected empty public key without VAPID keys")
	}
}
