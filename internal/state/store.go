package state

import (
	"context"
	"time"
)

// Store holds entity states and pending violations with per-key expiry.
//
// Implementations absorb their own failures: a lookup that cannot be served
// reports not found (or a best-effort local value) and a write that cannot
// reach the backend is kept locally. Nothing here returns an error because
// the validator must always reach a decision.
type Store interface {
	GetState(ctx context.Context, entityID string) (EntityState, bool)
	SetState(ctx context.Context, entityID string, st EntityState, ttl time.Duration)

	GetViolation(ctx context.Context, entityID string) (ViolationRecord, bool)
	SetViolation(ctx context.Context, entityID string, v ViolationRecord, ttl time.Duration)
	DeleteViolation(ctx context.Context, entityID string)
}
