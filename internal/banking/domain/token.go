package domain

import "time"

// ExpirySkew is subtracted from a token's lifetime so we refresh slightly
// before the bank would start rejecting it.
const ExpirySkew = 30 * time.Second

// TokenRecord is the stored user token set for the active bank connection.
// There is exactly one current record; a refresh replaces it wholesale.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string // may be empty for client-credentials tokens
	Scope        string // space-delimited granted scopes
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// Valid reports whether the access token is still usable at now,
// accounting for the refresh skew.
func (t TokenRecord) Valid(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	return now.Add(ExpirySkew).Before(t.ExpiresAt)
}
