package refresh

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a token is absent from the valid set: never
// issued, already rotated, revoked by logout, or evicted on expiry.
var ErrNotFound = errors.New("refresh token not found")

// Record is a currently-valid refresh token. Tokens are stored by hash so a
// dump of the store cannot be replayed against the refresh endpoint.
type Record struct {
	TokenHash string    `json:"token_hash"`
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Repo is the server's valid-refresh-token set.
//
// Take is the rotation primitive: it atomically removes and returns the
// record, so two concurrent refresh calls presenting the same token cannot
// both succeed.
type Repo interface {
	Save(ctx context.Context, rec *Record) error
	Take(ctx context.Context, tokenHash string) (*Record, error)
	Delete(ctx context.Context, tokenHash string) error
}
