package blocklist

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/bookly/internal/tokens"
	"github.com/redis/go-redis/v9"
)

// Blocklist records revoked token IDs in Redis. Entries live as long as the
// longest-lived token can, so stale jtis clean themselves up.
type Blocklist struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and pings it. A connection failure here must abort
// startup: serving traffic without revocation checks would fail open.
func New(ctx context.Context, addr string) (*Blocklist, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("blocklist: redis unreachable at %s: %w", addr, err)
	}
	return &Blocklist{client: client, ttl: tokens.RefreshLifetime}, nil
}

// NewWithClient wires an existing client, used by tests with miniredis.
func NewWithClient(client *redis.Client) *Blocklist {
	return &Blocklist{client: client, ttl: tokens.RefreshLifetime}
}

func (b *Blocklist) Add(ctx context.Context, jti string) error {
	if err := b.client.Set(ctx, key(jti), "1", b.ttl).Err(); err != nil {
		return fmt.Errorf("blocklist: set %s: %w", jti, err)
	}
	return nil
}

func (b *Blocklist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("blocklist: exists %s: %w", jti, err)
	}
	return n > 0, nil
}

func (b *Blocklist) Close() error {
	return b.client.Close()
}

func key(jti string) string {
	return "revoked:" + jti
}
