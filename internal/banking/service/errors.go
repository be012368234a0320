package service

import "errors"

var (
	// ErrPreconditionFailed means an operation was attempted before its
	// prerequisites existed, e.g. initiating a payment against a consent
	// the user never authorised. No bank call is made.
	ErrPreconditionFailed = errors.New("precondition_failed")

	// ErrUserCancelled means the user abandoned the bank's authorization
	// UI instead of completing it.
	ErrUserCancelled = errors.New("user_cancelled")

	// ErrAuthorizationDenied means the bank's redirect carried an error
	// instead of an authorization code.
	ErrAuthorizationDenied = errors.New("authorization_denied")

	// ErrUnknownState means a callback arrived for a state value no one
	// is waiting on.
	ErrUnknownState = errors.New("unknown_state")
)
