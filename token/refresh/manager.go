package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// HashToken derives the storage key for a refresh token.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Manager tracks the set of currently-valid refresh tokens and enforces
// single-use rotation on top of a Repo.
type Manager struct {
	repo Repo
}

func NewManager(repo Repo) *Manager {
	return &Manager{repo: repo}
}

// Register adds a freshly-minted token to the valid set.
func (m *Manager) Register(ctx context.Context, plain, userID string, expiresAt time.Time) error {
	rec := &Record{
		TokenHash: HashToken(plain),
		UserID:    userID,
		IssuedAt:  NowTimeFunc(),
		ExpiresAt: expiresAt,
	}
	if err := m.repo.Save(ctx, rec); err != nil {
		return errors.Wrap(err, "[Manager.Register] repo.Save")
	}
	return nil
}

// Take claims a token for rotation: the token leaves the valid set whether or
// not the caller's subsequent verification succeeds, so a token presented once
// can never be presented again. Returns ErrNotFound for tokens that were
// never issued, already rotated, revoked, or expired.
func (m *Manager) Take(ctx context.Context, plain string) (*Record, error) {
	rec, err := m.repo.Take(ctx, HashToken(plain))
	if err != nil {
		return nil, err
	}

	// Backends without native TTL eviction may hand back an expired record.
	if NowTimeFunc().After(rec.ExpiresAt) {
		return nil, ErrNotFound
	}

	return rec, nil
}

// Revoke removes a token from the valid set (logout). Returns ErrNotFound if
// the token was not in the set; callers decide whether that is an error.
func (m *Manager) Revoke(ctx context.Context, plain string) error {
	return m.repo.Delete(ctx, HashToken(plain))
}
