package tokenstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoope/openbanking/internal/banking/domain"
	"github.com/hoope/openbanking/internal/banking/store"
	"github.com/hoope/openbanking/pkg/obclient"

	"github.com/stretchr/testify/require"
)

// memTokens is an in-memory store.Tokens for tests.
type memTokens struct {
	mu  sync.Mutex
	rec domain.TokenRecord
	set bool
}

func (m *memTokens) GetCurrent(ctx context.Context) (domain.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return domain.TokenRecord{}, store.ErrNotFound
	}
	return m.rec, nil
}

func (m *memTokens) ReplaceCurrent(ctx context.Context, rec domain.TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = rec
	m.set = true
	return nil
}

func (m *memTokens) DeleteCurrent(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = domain.TokenRecord{}
	m.set = false
	return nil
}

// countingRefresher returns canned responses and counts exchanges.
type countingRefresher struct {
	calls atomic.Int64
	resp  obclient.TokenResponse
	err   error
	delay time.Duration
}

func (r *countingRefresher) RefreshGrant(ctx context.Context, refreshToken string) (*obclient.TokenResponse, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.err != nil {
		return nil, r.err
	}
	resp := r.resp
	return &resp, nil
}

func newStoreWith(t *testing.T, rec domain.TokenRecord) (*TokenStore, *memTokens) {
	t.Helper()
	repo := &memTokens{}
	if rec.AccessToken != "" {
		require.NoError(t, repo.ReplaceCurrent(context.Background(), rec))
	}
	ts, err := New(context.Background(), repo)
	require.NoError(t, err)
	return ts, repo
}

func TestTokenReturnsValidCachedToken(t *testing.T) {
	ts, _ := newStoreWith(t, domain.TokenRecord{
		AccessToken: "live-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "live-token", token)
}

func TestTokenWithoutRecordIsErrNoToken(t *testing.T) {
	ts, _ := newStoreWith(t, domain.TokenRecord{})

	_, err := ts.Token(context.Background())
	require.ErrorIs(t, err, ErrNoToken)
}

func TestTokenExpiredWithoutRefreshToken(t *testing.T) {
	ts, _ := newStoreWith(t, domain.TokenRecord{
		AccessToken: "expired",
		ExpiresAt:   time.Now().Add(-time.Minute),
	})

	_, err := ts.Token(context.Background())
	require.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestTokenRefreshesExpiredToken(t *testing.T) {
	ts, repo := newStoreWith(t, domain.TokenRecord{
		AccessToken:  "expired",
		RefreshToken: "refresh-1",
		Scope:        "openid accounts",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})
	refresher := &countingRefresher{resp: obclient.TokenResponse{
		AccessToken: "fresh",
		ExpiresIn:   2400,
	}}
	ts.SetRefresher(refresher)

	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh", token)
	require.Equal(t, int64(1), refresher.calls.Load())

	// Response carried no refresh token or scope, so the old values stay.
	rec, err := repo.GetCurrent(context.Background())
	require.NoError(t, err)
	require.Equal(t, "refresh-1", rec.RefreshToken)
	require.Equal(t, "openid accounts", rec.Scope)
}

func TestTokenRefreshWithinSkewWindow(t *testing.T) {
	// Token technically unexpired but inside the refresh skew; must refresh.
	ts, _ := newStoreWith(t, domain.TokenRecord{
		AccessToken:  "nearly-dead",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(domain.ExpirySkew / 2),
	})
	refresher := &countingRefresher{resp: obclient.TokenResponse{
		AccessToken: "fresh",
		ExpiresIn:   2400,
	}}
	ts.SetRefresher(refresher)

	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh", token)
}

func TestConcurrentRefreshRunsOneExchange(t *testing.T) {
	ts, _ := newStoreWith(t, domain.TokenRecord{
		AccessToken:  "expired",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})
	refresher := &countingRefresher{
		resp:  obclient.TokenResponse{AccessToken: "fresh", ExpiresIn: 2400},
		delay: 20 * time.Millisecond,
	}
	ts.SetRefresher(refresher)

	const goroutines = 8
	var wg sync.WaitGroup
	tokens := make([]string, goroutines)
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = ts.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "fresh", tokens[i])
	}
	require.Equal(t, int64(1), refresher.calls.Load())
}

func TestRefreshSkipsExchangeWhenAlreadyReplaced(t *testing.T) {
	ts, _ := newStoreWith(t, domain.TokenRecord{
		AccessToken:  "current",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	refresher := &countingRefresher{resp: obclient.TokenResponse{
		AccessToken: "fresh",
		ExpiresIn:   2400,
	}}
	ts.SetRefresher(refresher)

	// Caller holds a token from before the last replacement; the cached
	// record already supersedes it, so no exchange happens.
	token, err := ts.Refresh(context.Background(), "stale-from-before")
	require.NoError(t, err)
	require.Equal(t, "current", token)
	require.Equal(t, int64(0), refresher.calls.Load())

	// Same token that is cached and bank rejected it: exchange runs.
	token, err = ts.Refresh(context.Background(), "current")
	require.NoError(t, err)
	require.Equal(t, "fresh", token)
	require.Equal(t, int64(1), refresher.calls.Load())
}

func TestRefreshRotatesRefreshToken(t *testing.T) {
	ts, repo := newStoreWith(t, domain.TokenRecord{
		AccessToken:  "expired",
		RefreshToken: "refresh-old",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})
	refresher := &countingRefresher{resp: obclient.TokenResponse{
		AccessToken:  "fresh",
		RefreshToken: "refresh-new",
		ExpiresIn:    2400,
	}}
	ts.SetRefresher(refresher)

	_, err := ts.Token(context.Background())
	require.NoError(t, err)

	rec, err := repo.GetCurrent(context.Background())
	require.NoError(t, err)
	require.Equal(t, "refresh-new", rec.RefreshToken)
}

func TestPutAndClear(t *testing.T) {
	ts, repo := newStoreWith(t, domain.TokenRecord{})

	require.NoError(t, ts.Put(context.Background(), domain.TokenRecord{
		AccessToken:  "connected",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}))

	rec, err := ts.Get()
	require.NoError(t, err)
	require.Equal(t, "connected", rec.AccessToken)

	persisted, err := repo.GetCurrent(context.Background())
	require.NoError(t, err)
	require.Equal(t, "connected", persisted.AccessToken)

	require.NoError(t, ts.Clear(context.Background()))
	_, err = ts.Get()
	require.ErrorIs(t, err, ErrNoToken)
	_, err = repo.GetCurrent(context.Background())
	require.ErrorIs(t, err, store.ErrNotFound)
}
