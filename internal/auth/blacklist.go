package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mercadito/marketplace/internal/redisx"
)

// Blacklist stores revoked tokens (logout) in redis until they would have
// expired anyway.
type Blacklist struct {
	rdb *redis.Client
}

func NewBlacklist(rdb *redis.Client) *Blacklist {
	return &Blacklist{rdb: rdb}
}

func (b *Blacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already dead
	}
	return b.rdb.Set(ctx, blacklistKey(token), "1", ttl).Err()
}

func (b *Blacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	return redisx.Exists(ctx, b.rdb, blacklistKey(token))
}

func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf(redisx.KeyTokenBlacklist, hex.EncodeToString(sum[:]))
}
