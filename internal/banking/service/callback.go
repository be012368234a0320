package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Callback is the parsed result of a bank authorization redirect.
type Callback struct {
	Code   string
	State  string
	RawURL string // with any fragment already rewritten to query form
}

// ParseCallback extracts the authorization code and state from a
// redirect URL. Banks using response_mode=fragment put the parameters
// after a '#', which url.Values never sees, so the fragment is rewritten
// to query form before parsing. Both forms are accepted.
func ParseCallback(rawURL string) (Callback, error) {
	normalized := strings.Replace(rawURL, "#", "?", 1)

	u, err := url.Parse(normalized)
	if err != nil {
		return Callback{}, fmt.Errorf("parse callback url: %w", err)
	}

	q := u.Query()
	if e := q.Get("error"); e != "" {
		desc := q.Get("error_description")
		if desc != "" {
			return Callback{}, fmt.Errorf("%w: %s: %s", ErrAuthorizationDenied, e, desc)
		}
		return Callback{}, fmt.Errorf("%w: %s", ErrAuthorizationDenied, e)
	}

	cb := Callback{
		Code:   q.Get("code"),
		State:  q.Get("state"),
		RawURL: normalized,
	}
	if cb.Code == "" {
		return Callback{}, fmt.Errorf("%w: callback carried no authorization code", ErrAuthorizationDenied)
	}
	return cb, nil
}

type callbackResult struct {
	cb  Callback
	err error
}

// CallbackBroker routes bank authorization redirects to whichever flow
// is waiting on them, keyed by the OAuth state value. One waiter per
// state; a redelivery after resolution is reported as unknown.
type CallbackBroker struct {
	mu      sync.Mutex
	waiters map[string]chan callbackResult
}

func NewCallbackBroker() *CallbackBroker {
	return &CallbackBroker{
		waiters: make(map[string]chan callbackResult),
	}
}

// Await blocks until a callback for state is delivered, the flow is
// cancelled, or ctx expires.
func (b *CallbackBroker) Await(ctx context.Context, state string) (Callback, error) {
	ch := make(chan callbackResult, 1)

	b.mu.Lock()
	b.waiters[state] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.waiters, state)
		b.mu.Unlock()
	}()

	select {
	case res := <-ch:
		return res.cb, res.err
	case <-ctx.Done():
		return Callback{}, ctx.Err()
	}
}

// Deliver parses a redirect URL and resolves the waiter registered for
// its state. Redirects that parse but match no waiter return
// ErrUnknownState so the HTTP layer can say so.
func (b *CallbackBroker) Deliver(rawURL string) error {
	cb, err := ParseCallback(rawURL)
	if err != nil {
		// Denials still carry a state we can route to the waiter.
		normalized := strings.Replace(rawURL, "#", "?", 1)
		if u, perr := url.Parse(normalized); perr == nil {
			if state := u.Query().Get("state"); state != "" {
				return b.resolve(state, callbackResult{err: err})
			}
		}
		return err
	}
	if cb.State == "" {
		return fmt.Errorf("%w: callback carried no state", ErrUnknownState)
	}
	return b.resolve(cb.State, callbackResult{cb: cb})
}

// Cancel fails the waiter for state with ErrUserCancelled.
func (b *CallbackBroker) Cancel(state string) error {
	return b.resolve(state, callbackResult{err: ErrUserCancelled})
}

func (b *CallbackBroker) resolve(state string, res callbackResult) error {
	b.mu.Lock()
	ch, ok := b.waiters[state]
	if ok {
		delete(b.waiters, state)
	}
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownState, state)
	}
	ch <- res
	return nil
}
