package redisx

import "time"

const (
	// Cache of an order's current status: order:status:{order_id} -> {"status":"..."}
	KeyOrderStatus = "order:status:%d"

	// Revoked auth token (logout): auth:blacklist:{sha} -> "1", expires with the token
	KeyTokenBlacklist = "auth:blacklist:%s"

	// Dedup for event consumers: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
