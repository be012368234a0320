package domain

import "time"

// ConsentKind distinguishes the two OBIE consent flavours we create.
type ConsentKind string

const (
	ConsentKindAccountAccess   ConsentKind = "account-access"
	ConsentKindDomesticPayment ConsentKind = "domestic-payment"
)

// Consent statuses. The bank reports the OBIE statuses; Revoked and
// Expired are local bookkeeping.
const (
	ConsentStatusAwaitingAuthorisation = "AwaitingAuthorisation"
	ConsentStatusAuthorised            = "Authorised"
	ConsentStatusConsumed              = "Consumed"
	ConsentStatusRejected              = "Rejected"
	ConsentStatusRevoked               = "Revoked"
	ConsentStatusExpired               = "Expired"
)

// Consent tracks a bank-side consent through its lifecycle. ID is the
// bank-issued ConsentId, which also doubles as the OAuth state value for
// the authorization round trip.
type Consent struct {
	ID          string
	Kind        ConsentKind
	Status      string
	Scope       string   // OAuth scope the consent's tokens are requested with
	Permissions []string // account-access permission codes, empty for payments

	// Payment consents carry the instruction they were created for plus
	// the idempotency key minted for the logical payment attempt.
	Instruction    *PaymentInstruction
	IdempotencyKey string

	CreatedAt time.Time
	ExpiresAt time.Time // zero means the bank imposed no expiry
	UpdatedAt time.Time
}

// Authorised reports whether the consent can back resource or payment calls.
func (c Consent) Authorised() bool {
	return c.Status == ConsentStatusAuthorised
}

// Expired reports whether a consent window has lapsed at now.
func (c Consent) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
