package obclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthentication means the bank rejected our credentials even after
	// a token refresh. The caller has to restart the consent flow.
	ErrAuthentication = errors.New("obclient: authentication failed")

	// ErrInsufficientFunds is the bank's error code 1006 on a payment
	// submission. The consent is consumed either way.
	ErrInsufficientFunds = errors.New("obclient: insufficient funds")
)

// insufficientFundsCode is Revolut's error code for a payment the debtor
// account cannot cover.
const insufficientFundsCode = "1006"

// APIError is a non-2xx response from the bank, with whatever structured
// detail we could extract from the body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string // raw body for the cases the bank invents new shapes

	err error // optional sentinel classification, e.g. ErrInsufficientFunds
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("obclient: bank returned %d (code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("obclient: bank returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes the sentinel classification, so
// errors.Is(err, ErrInsufficientFunds) works on classified rejections.
func (e *APIError) Unwrap() error { return e.err }

// parseErrorResponse turns a non-2xx bank response into a typed error.
// Returns nil for 2xx responses. The bank speaks two error dialects:
// OBIE bodies ({Code, Message, Errors}) on resource endpoints and OAuth2
// bodies ({error, error_description}) on the token endpoint.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		Body:       string(body),
	}

	var obie struct {
		Code    json.Number `json:"Code"`
		Message string      `json:"Message"`
		Errors  []struct {
			ErrorCode string `json:"ErrorCode"`
			Message   string `json:"Message"`
		} `json:"Errors"`
	}
	if err := json.Unmarshal(body, &obie); err == nil && (obie.Code != "" || obie.Message != "") {
		apiErr.Code = obie.Code.String()
		if obie.Message != "" {
			apiErr.Message = obie.Message
		}
		if apiErr.Code == "" && len(obie.Errors) > 0 {
			apiErr.Code = obie.Errors[0].ErrorCode
		}
	} else {
		var oauth struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if err := json.Unmarshal(body, &oauth); err == nil && oauth.Error != "" {
			apiErr.Code = oauth.Error
			if oauth.Description != "" {
				apiErr.Message = oauth.Description
			}
		}
	}

	if apiErr.Code == insufficientFundsCode {
		apiErr.err = ErrInsufficientFunds
	}

	return apiErr
}
