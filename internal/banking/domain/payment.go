package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidAmount reports an amount string that is not a plain decimal
// with at most two fraction digits.
var ErrInvalidAmount = errors.New("domain: invalid amount")

// amountPattern accepts whole numbers and up to two decimal places.
// No signs, no grouping, no currency symbols.
var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// NormalizeAmount validates an amount string and formats it with exactly
// two decimal places, e.g. "250.5" becomes "250.50". The normalized form
// is what gets marshaled and signed, so it must be fixed before any
// signature is computed.
func NormalizeAmount(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !amountPattern.MatchString(s) {
		return "", ErrInvalidAmount
	}

	whole, frac, found := strings.Cut(s, ".")
	if !found {
		return whole + ".00", nil
	}
	for len(frac) < 2 {
		frac += "0"
	}
	return whole + "." + frac, nil
}

// PaymentInstruction is what the caller asks us to pay. Creditor fields
// identify the payee account in scheme terms (e.g. UK.OBIE.SortCodeAccountNumber).
type PaymentInstruction struct {
	Amount              string // normalized, two decimal places
	Currency            string // ISO 4217, e.g. "GBP"
	CreditorSchemeName  string
	CreditorID          string // scheme identification, e.g. sort code + account number
	CreditorName        string
	Reference           string // unstructured remittance information
	InstructionID       string
	EndToEndID          string
}

// PaymentResult is the terminal record of an initiated domestic payment.
type PaymentResult struct {
	DomesticPaymentID string
	ConsentID         string
	Status            string
	CreatedAt         time.Time
}
