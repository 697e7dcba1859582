package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// PinIndex reserves join PINs in Redis so several instances never hand out
// the same code for concurrently live sessions. Keys carry a TTL as a safety
// net against instances that die without releasing.
type PinIndex struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPinIndex(client *redis.Client, ttl time.Duration) *PinIndex {
	return &PinIndex{client: client, ttl: ttl}
}

// Reserve claims a PIN. Returns false when another session already holds it.
func (p *PinIndex) Reserve(ctx context.Context, pin, sessionID string) (bool, error) {
	value := sessionID
	if value == "" {
		value = "1"
	}
	return p.client.SetNX(ctx, p.key(pin), value, p.ttl).Result()
}

// Release frees a PIN once its session is evicted.
func (p *PinIndex) Release(ctx context.Context, pin string) error {
	return p.client.Del(ctx, p.key(pin)).Err()
}

func (p *PinIndex) key(pin string) string {
	return "session:pin:" + pin
}
