// Package tokenstore holds the current user token set for the bank
// connection and refreshes it transparently. It backs the resource
// client's token source so callers never juggle raw tokens.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hoope/openbanking/internal/banking/domain"
	"github.com/hoope/openbanking/internal/banking/store"
	"github.com/hoope/openbanking/pkg/obclient"
)

var (
	// ErrNoToken means no user has connected a bank account yet, or the
	// connection was revoked.
	ErrNoToken = errors.New("tokenstore: no current token")

	// ErrNoRefreshToken means the access token expired and we have no way
	// to mint a replacement; the user must re-authorise.
	ErrNoRefreshToken = errors.New("tokenstore: access token expired and no refresh token available")
)

// Refresher exchanges a refresh token for a fresh token set. The resource
// client satisfies this.
type Refresher interface {
	RefreshGrant(ctx context.Context, refreshToken string) (*obclient.TokenResponse, error)
}

// TokenStore caches the single current token record in memory and keeps
// the persisted copy in sync. Refreshes are serialized: when several
// callers hit an expired token at once, exactly one token exchange runs
// and the rest share its result.
type TokenStore struct {
	repo      store.Tokens
	refresher Refresher

	mu     sync.RWMutex
	record domain.TokenRecord
	loaded bool

	now func() time.Time
}

// New builds a TokenStore over the persisted record, loading any existing
// token set so a restart does not force the user back through consent.
func New(ctx context.Context, repo store.Tokens) (*TokenStore, error) {
	ts := &TokenStore{
		repo: repo,
		now:  time.Now,
	}

	rec, err := repo.GetCurrent(ctx)
	switch {
	case err == nil:
		ts.record = rec
		ts.loaded = true
	case errors.Is(err, store.ErrNotFound):
		// fresh install, nothing to load
	default:
		return nil, fmt.Errorf("load current token: %w", err)
	}

	return ts, nil
}

// SetRefresher wires the token exchange dependency. Split from New
// because the resource client and the store reference each other.
func (ts *TokenStore) SetRefresher(r Refresher) {
	ts.mu.Lock()
	ts.refresher = r
	ts.mu.Unlock()
}

// Put replaces the current token record wholesale, in memory and on disk.
// Used after a code exchange establishes a new connection.
func (ts *TokenStore) Put(ctx context.Context, rec domain.TokenRecord) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	rec.UpdatedAt = ts.now().UTC()
	if err := ts.repo.ReplaceCurrent(ctx, rec); err != nil {
		return fmt.Errorf("persist token record: %w", err)
	}
	ts.record = rec
	ts.loaded = true
	return nil
}

// Get returns the current record without refreshing.
func (ts *TokenStore) Get() (domain.TokenRecord, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if !ts.loaded {
		return domain.TokenRecord{}, ErrNoToken
	}
	return ts.record, nil
}

// Clear drops the current record, in memory and on disk. Used on
// disconnect and when the bank permanently rejects the connection.
func (ts *TokenStore) Clear(ctx context.Context) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if err := ts.repo.DeleteCurrent(ctx); err != nil {
		return fmt.Errorf("delete token record: %w", err)
	}
	ts.record = domain.TokenRecord{}
	ts.loaded = false
	return nil
}

// Token returns a currently valid access token, refreshing if needed.
func (ts *TokenStore) Token(ctx context.Context) (string, error) {
	ts.mu.RLock()
	if ts.loaded && ts.record.Valid(ts.now()) {
		token := ts.record.AccessToken
		ts.mu.RUnlock()
		return token, nil
	}
	ts.mu.RUnlock()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	// Double-check after acquiring the write lock; another goroutine may
	// have refreshed while we waited.
	if ts.loaded && ts.record.Valid(ts.now()) {
		return ts.record.AccessToken, nil
	}

	return ts.refreshLocked(ctx)
}

// Refresh invalidates staleAccess and returns a replacement. If another
// caller already replaced it, the existing replacement is returned
// without a second exchange.
func (ts *TokenStore) Refresh(ctx context.Context, staleAccess string) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.loaded && ts.record.AccessToken != staleAccess && ts.record.Valid(ts.now()) {
		return ts.record.AccessToken, nil
	}

	return ts.refreshLocked(ctx)
}

// refreshLocked runs the refresh grant and replaces the record. Caller
// holds the write lock.
func (ts *TokenStore) refreshLocked(ctx context.Context) (string, error) {
	if !ts.loaded {
		return "", ErrNoToken
	}
	if ts.record.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}
	if ts.refresher == nil {
		return "", errors.New("tokenstore: no refresher configured")
	}

	resp, err := ts.refresher.RefreshGrant(ctx, ts.record.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh grant: %w", err)
	}

	now := ts.now().UTC()
	rec := domain.TokenRecord{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Scope:        resp.Scope,
		ExpiresAt:    now.Add(time.Duration(resp.ExpiresIn) * time.Second),
		UpdatedAt:    now,
	}

	// Some banks rotate refresh tokens on every grant, others omit the
	// field entirely. Keep what we have when nothing new arrives.
	if rec.RefreshToken == "" {
		rec.RefreshToken = ts.record.RefreshToken
	}
	if rec.Scope == "" {
		rec.Scope = ts.record.Scope
	}

	if err := ts.repo.ReplaceCurrent(ctx, rec); err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}

	ts.record = rec
	return rec.AccessToken, nil
}
