package obclient

import "time"

// TokenResponse is what the bank's token endpoint returns for any grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    int    `json:"expires_in"`           // seconds until expiry
	Scope        string `json:"scope,omitempty"`      // space-delimited
}

// Amount is the OBIE instructed amount pair. Amount is a string on the
// wire and must already be normalized to two decimal places.
type Amount struct {
	Amount   string `json:"Amount"`
	Currency string `json:"Currency"`
}

// CreditorAccount identifies the payee in scheme terms.
type CreditorAccount struct {
	SchemeName     string `json:"SchemeName"`
	Identification string `json:"Identification"`
	Name           string `json:"Name,omitempty"`
}

// Initiation is the payment instruction block shared by payment consents
// and payment submissions. The two must match byte-for-byte or the bank
// rejects the submission.
type Initiation struct {
	InstructionIdentification string           `json:"InstructionIdentification"`
	EndToEndIdentification    string           `json:"EndToEndIdentification"`
	InstructedAmount          Amount           `json:"InstructedAmount"`
	CreditorAccount           CreditorAccount  `json:"CreditorAccount"`
	RemittanceInformation     *RemittanceInfo  `json:"RemittanceInformation,omitempty"`
}

// RemittanceInfo carries the payment reference shown to the payee.
type RemittanceInfo struct {
	Unstructured string `json:"Unstructured,omitempty"`
}

// Risk is the OBIE risk block sent with payment consents and submissions.
type Risk struct {
	PaymentContextCode             string           `json:"PaymentContextCode,omitempty"`
	MerchantCategoryCode           string           `json:"MerchantCategoryCode,omitempty"`
	MerchantCustomerIdentification string           `json:"MerchantCustomerIdentification,omitempty"`
	DeliveryAddress                *DeliveryAddress `json:"DeliveryAddress,omitempty"`
}

// DeliveryAddress is part of the Risk block for e-commerce context codes.
type DeliveryAddress struct {
	AddressLine    []string `json:"AddressLine,omitempty"`
	StreetName     string   `json:"StreetName,omitempty"`
	BuildingNumber string   `json:"BuildingNumber,omitempty"`
	PostCode       string   `json:"PostCode,omitempty"`
	TownName       string   `json:"TownName,omitempty"`
	Country        string   `json:"Country,omitempty"`
}

// AccountAccessConsentRequest asks for read access to account data.
type AccountAccessConsentRequest struct {
	Data AccountAccessConsentData `json:"Data"`
	Risk struct{}                 `json:"Risk"`
}

// AccountAccessConsentData carries permissions plus the optional
// validity window for the consent and its transaction visibility.
type AccountAccessConsentData struct {
	Permissions             []string   `json:"Permissions"`
	ExpirationDateTime      *time.Time `json:"ExpirationDateTime,omitempty"`
	TransactionFromDateTime *time.Time `json:"TransactionFromDateTime,omitempty"`
	TransactionToDateTime   *time.Time `json:"TransactionToDateTime,omitempty"`
}

// PaymentConsentRequest creates a domestic payment consent.
type PaymentConsentRequest struct {
	Data PaymentConsentData `json:"Data"`
	Risk Risk               `json:"Risk"`
}

// PaymentConsentData wraps the initiation for a consent request.
type PaymentConsentData struct {
	Initiation Initiation `json:"Initiation"`
}

// PaymentRequest submits a domestic payment against an authorised consent.
type PaymentRequest struct {
	Data PaymentData `json:"Data"`
	Risk Risk        `json:"Risk"`
}

// PaymentData wraps the consent reference and initiation for submission.
type PaymentData struct {
	ConsentID  string     `json:"ConsentId"`
	Initiation Initiation `json:"Initiation"`
}

// ConsentResponse is the bank's reply to either consent creation call.
type ConsentResponse struct {
	Data ConsentResponseData `json:"Data"`
}

// ConsentResponseData carries the bank-issued consent identity and status.
type ConsentResponseData struct {
	ConsentID          string     `json:"ConsentId"`
	Status             string     `json:"Status"`
	CreationDateTime   *time.Time `json:"CreationDateTime,omitempty"`
	ExpirationDateTime *time.Time `json:"ExpirationDateTime,omitempty"`
}

// PaymentResponse is the bank's reply to a domestic payment submission.
type PaymentResponse struct {
	Data PaymentResponseData `json:"Data"`
}

// PaymentResponseData carries the payment identity and its status.
type PaymentResponseData struct {
	DomesticPaymentID string     `json:"DomesticPaymentId"`
	ConsentID         string     `json:"ConsentId"`
	Status            string     `json:"Status"`
	CreationDateTime  *time.Time `json:"CreationDateTime,omitempty"`
}

// AccountsResponse lists the connected accounts.
type AccountsResponse struct {
	Data struct {
		Account []Account `json:"Account"`
	} `json:"Data"`
}

// Account is a connected bank account as the bank reports it.
type Account struct {
	AccountID      string          `json:"AccountId"`
	Currency       string          `json:"Currency"`
	AccountType    string          `json:"AccountType,omitempty"`
	AccountSubType string          `json:"AccountSubType,omitempty"`
	Nickname       string          `json:"Nickname,omitempty"`
	Account        []AccountDetail `json:"Account,omitempty"`
}

// AccountDetail is the scheme identification for an account.
type AccountDetail struct {
	SchemeName     string `json:"SchemeName"`
	Identification string `json:"Identification"`
	Name           string `json:"Name,omitempty"`
}

// BalancesResponse lists balances for one account.
type BalancesResponse struct {
	Data struct {
		Balance []Balance `json:"Balance"`
	} `json:"Data"`
}

// Balance is a point-in-time balance for an account.
type Balance struct {
	AccountID            string     `json:"AccountId"`
	Amount               Amount     `json:"Amount"`
	CreditDebitIndicator string     `json:"CreditDebitIndicator,omitempty"`
	Type                 string     `json:"Type,omitempty"`
	DateTime             *time.Time `json:"DateTime,omitempty"`
}

// TransactionsResponse lists transactions for one account.
type TransactionsResponse struct {
	Data struct {
		Transaction []Transaction `json:"Transaction"`
	} `json:"Data"`
}

// Transaction is a booked or pending account transaction.
type Transaction struct {
	AccountID              string     `json:"AccountId"`
	TransactionID          string     `json:"TransactionId,omitempty"`
	Amount                 Amount     `json:"Amount"`
	CreditDebitIndicator   string     `json:"CreditDebitIndicator,omitempty"`
	Status                 string     `json:"Status,omitempty"`
	BookingDateTime        *time.Time `json:"BookingDateTime,omitempty"`
	TransactionInformation string     `json:"TransactionInformation,omitempty"`
}

// BeneficiariesResponse lists saved beneficiaries for one account.
type BeneficiariesResponse struct {
	Data struct {
		Beneficiary []Beneficiary `json:"Beneficiary"`
	} `json:"Data"`
}

// Beneficiary is a payee the account holder has previously paid.
type Beneficiary struct {
	AccountID       string           `json:"AccountId,omitempty"`
	BeneficiaryID   string           `json:"BeneficiaryId,omitempty"`
	Reference       string           `json:"Reference,omitempty"`
	CreditorAccount *CreditorAccount `json:"CreditorAccount,omitempty"`
}
