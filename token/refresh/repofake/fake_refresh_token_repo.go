package refreshrepofake

import (
	"context"
	"sync"

	"github.com/tokengate/tokengate/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

// FakeRefreshTokenRepo is an in-memory, process-wide token set. Suitable for
// tests and single-instance deployments; sessions do not survive a restart.
type FakeRefreshTokenRepo struct {
	tokens map[string]*refresh.Record
	lock   sync.Mutex
}

func NewFakeRefreshTokenRepo() refresh.Repo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]*refresh.Record),
	}
}

func (tr *FakeRefreshTokenRepo) Save(_ context.Context, rec *refresh.Record) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.tokens[rec.TokenHash] = rec
	return nil
}

// Take removes and returns the record under one lock, so concurrent rotation
// attempts with the same token see exactly one winner.
func (tr *FakeRefreshTokenRepo) Take(_ context.Context, tokenHash string) (*refresh.Record, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rec, ok := tr.tokens[tokenHash]
	if !ok {
		return nil, refresh.ErrNotFound
	}
	delete(tr.tokens, tokenHash)
	return rec, nil
}

func (tr *FakeRefreshTokenRepo) Delete(_ context.Context, tokenHash string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if _, ok := tr.tokens[tokenHash]; !ok {
		return refresh.ErrNotFound
	}
	delete(tr.tokens, tokenHash)
	return nil
}
