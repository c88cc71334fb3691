package shared

import (
	"context"
	"time"
)

// DefaultIdempotencyTTL bounds how long a settled gateway notification is
// remembered when no TTL is configured.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore records keys of side effects that must happen once,
// such as settling a payment from a VNPay IPN.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl. It reports false when key was
	// already claimed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	Close() error
}
