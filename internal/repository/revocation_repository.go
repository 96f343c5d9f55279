package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenPrefix = "auth:revoked:"

// RevocationRepository stores revoked token ids in Redis. Entries expire
// together with the token they revoke.
type RevocationRepository struct {
	client *redis.Client
	now    func() time.Time
}

// NewRevocationRepository builds a Redis-backed revocation list.
func NewRevocationRepository(client *redis.Client) *RevocationRepository {
	return &RevocationRepository{client: client, now: time.Now}
}

// Revoke marks tokenID as revoked until expiresAt. Already-expired tokens
// are ignored.
func (r *RevocationRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if r == nil || r.client == nil {
		return errors.New("redis client not configured")
	}
	if tokenID == "" {
		return errors.New("token id required")
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedTokenPrefix+tokenID, expiresAt.Unix(), ttl).Err()
}

// Consume revokes tokenID with SET NX. It returns false when the id was
// already revoked or the token has expired.
func (r *RevocationRepository) Consume(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if r == nil || r.client == nil {
		return false, errors.New("redis client not configured")
	}
	if tokenID == "" {
		return false, errors.New("token id required")
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return false, nil
	}
	return r.client.SetNX(ctx, revokedTokenPrefix+tokenID, expiresAt.Unix(), ttl).Result()
}

// IsRevoked reports whether tokenID was revoked.
func (r *RevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if r == nil || r.client == nil {
		return false, errors.New("redis client not configured")
	}
	n, err := r.client.Exists(ctx, revokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
