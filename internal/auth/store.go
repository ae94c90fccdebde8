package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RefreshRecord is the persisted state of the single valid refresh token a
// principal may hold. Only the sha256 of the token's jti is stored.
type RefreshRecord struct {
	ID        string
	Kind      Kind
	Principal string
	JTIHash   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshTokenStore owns persisted refresh-token hashes. Implementations
// must make Save an atomic replace and Consume an atomic compare-and-delete:
// of any number of concurrent Consume calls for the same token, exactly one
// may succeed.
type RefreshTokenStore interface {
	// Save replaces any prior record for the principal with rec.
	Save(ctx context.Context, rec *RefreshRecord) error

	// Consume deletes the record iff it matches jtiHash and has not expired.
	// A miss returns ErrTokenReuseOrUnknown whether the token never existed,
	// was already used, or expired — callers cannot tell these apart.
	Consume(ctx context.Context, kind Kind, principalID, jtiHash string) error

	// Revoke deletes any record for the principal. Idempotent.
	Revoke(ctx context.Context, kind Kind, principalID string) error
}

// HashJTI computes the stored form of a refresh token's rotation identifier.
func HashJTI(jti string) string {
	sum := sha256.Sum256([]byte(jti))
	return hex.EncodeToString(sum[:])
}
