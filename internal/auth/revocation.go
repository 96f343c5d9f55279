package auth

import (
	"context"
	"time"
)

// RevocationList records token ids that must no longer be accepted before
// their natural expiry.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// Consume revokes tokenID and reports whether this call did so. Of any
	// number of concurrent calls for one id, at most one gets true.
	Consume(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
}
