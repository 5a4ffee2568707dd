package locks

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Deduper marks idempotency keys so repeat work within the TTL is skipped.
// A nil Deduper claims every key, which keeps single-instance deployments
// and tests working without redis.
type Deduper struct {
	client *redis.Client
}

func NewDeduper(client *redis.Client) *Deduper {
	if client == nil {
		return nil
	}
	return &Deduper{client: client}
}

// Claim returns true when the key was not seen within the TTL window.
func (d *Deduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if d == nil || d.client == nil {
		return true, nil
	}
	if key == "" || ttl <= 0 {
		return true, nil
	}
	return d.client.SetNX(ctx, key, "1", ttl).Result()
}
