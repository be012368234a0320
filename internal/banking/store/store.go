package store

import (
	"context"
	"errors"
	"time"

	"github.com/hoope/openbanking/internal/banking/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for
// now) implement this. It exposes sub-repositories to keep concerns tidy
// and testable.
type Store interface {
	Tokens() Tokens
	Consents() Consents

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Tokens persists the single current user token record. Token values are
// sealed before they hit disk and opened on the way out.
type Tokens interface {
	// GetCurrent returns the current token record.
	GetCurrent(ctx context.Context) (domain.TokenRecord, error)

	// ReplaceCurrent stores rec as the current record, replacing any
	// previous record wholesale.
	ReplaceCurrent(ctx context.Context, rec domain.TokenRecord) error

	// DeleteCurrent drops the current record (disconnect, housekeeping).
	DeleteCurrent(ctx context.Context) error
}

// Consents tracks bank-side consents through their lifecycle.
type Consents interface {
	// CreateConsent inserts a new consent (id is the bank's ConsentId).
	CreateConsent(ctx context.Context, c domain.Consent) error

	// GetConsentByID fetches a consent by the bank's ConsentId.
	GetConsentByID(ctx context.Context, id string) (domain.Consent, error)

	// UpdateConsentStatus moves a consent through its lifecycle and bumps updated_at.
	UpdateConsentStatus(ctx context.Context, id, status string) error

	// ListConsentsByKind returns consents of one kind, newest first.
	ListConsentsByKind(ctx context.Context, kind domain.ConsentKind) ([]domain.Consent, error)

	// ExpireConsentsBefore marks authorised/pending consents whose window
	// lapsed before now as Expired. Housekeeping.
	ExpireConsentsBefore(ctx context.Context, now time.Time) error

	// DeleteConsentsBefore removes terminal consents older than cutoff.
	DeleteConsentsBefore(ctx context.Context, cutoff time.Time) error
}
