// Package push delivers notifications to browsers of users with no live
// WebSocket, via Web Push. Subscriptions live in Redis per user.
package push

import (
	"context"
	"encoding/json"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/redis/go-redis/v9"

	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/model"
)

const (
	redisKeyPrefix  = "push:subs:"
	maxSubsPerUser  = 10
	subscriptionTTL = 30 * 24 * time.Hour
)

// Subscription is the subscription object a browser produces.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Sender stores push subscriptions and sends notifications through the
// Web Push protocol. A nil Sender (or one without VAPID keys) is a no-op.
type Sender struct {
	redis *redis.Client
	vapid *webpush.Options
}

// NewSender builds a Sender. keys may be nil, which disables sending but
// still allows subscription management.
func NewSender(rdb *redis.Client, keys *VAPIDKeys) *Sender {
	s := &Sender{redis: rdb}
	if keys != nil && keys.PublicKey != "" && keys.PrivateKey != "" {
		s.vapid = &webpush.Options{
			Subscriber:      "civicdesk-push",
			VAPIDPublicKey:  keys.PublicKey,
			VAPIDPrivateKey: keys.PrivateKey,
			TTL:             30,
		}
	}
	return s
}

// Subscribe stores a browser subscription for the user, capped at
// maxSubsPerUser most recent entries.
func (s *Sender) Subscribe(ctx context.Context, userID string, sub Subscription) error {
	if s == nil || s.redis == nil {
		return nil
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	key := redisKeyPrefix + userID
	pipe := s.redis.Pipeline()
	pipe.RPush(ctx, key, string(raw))
	pipe.LTrim(ctx, key, -maxSubsPerUser, -1)
	pipe.Expire(ctx, key, subscriptionTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Notify implements ws.PushNotifier: sends the notification to every
// stored subscription of the user. Failures are logged, never surfaced.
func (s *Sender) Notify(ctx context.Context, userID string, n *model.Notification) {
	if s == nil || s.redis == nil || s.vapid == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	key := redisKeyPrefix + userID
	list, err := s.redis.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		logger.Errorf("push: load subscriptions user=%s: %v", userID, err)
		return
	}
	payload, _ := json.Marshal(n)
	for _, item := range list {
		var sub Subscription
		if json.Unmarshal([]byte(item), &sub) != nil || sub.Endpoint == "" {
			continue
		}
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, s.vapid)
		if err != nil {
			logger.Errorf("push: send user=%s: %v", userID, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == 410 || resp.StatusCode == 404 {
			s.removeSubscription(ctx, userID, sub.Endpoint)
		}
	}
}

// removeSubscription drops a dead endpoint (gone or not found upstream).
func (s *Sender) removeSubscription(ctx context.Context, userID, endpoint string) {
	key := redisKeyPrefix + userID
	list, err := s.redis.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return
	}
	var kept []string
	for _, item := range list {
		var sub Subscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != endpoint {
			kept = append(kept, item)
		}
	}
	s.redis.Del(ctx, key)
	for _, v := range kept {
		s.redis.RPush(ctx, key, v)
	}
	if len(kept) > 0 {
		s.redis.Expire(ctx, key, subscriptionTTL)
	}
}

// PublicKey returns the VAPID public key for browser subscription, or ""
// when push is disabled.
func (s *Sender) PublicKey() string {
	if s == nil || s.vapid == nil {
		return ""
	}
	return s.vapid.VAPIDPublicKey
}
