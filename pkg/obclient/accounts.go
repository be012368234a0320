package obclient

import (
	"context"
	"net/http"
)

// ListAccounts returns every account the user consented to share.
func (c *Client) ListAccounts(ctx context.Context) (*AccountsResponse, error) {
	var out AccountsResponse
	if err := c.doUser(ctx, http.MethodGet, "/accounts", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBalances returns balances for one account.
func (c *Client) GetBalances(ctx context.Context, accountID string) (*BalancesResponse, error) {
	var out BalancesResponse
	if err := c.doUser(ctx, http.MethodGet, "/accounts/"+accountID+"/balances", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTransactions returns transactions for one account.
func (c *Client) GetTransactions(ctx context.Context, accountID string) (*TransactionsResponse, error) {
	var out TransactionsResponse
	if err := c.doUser(ctx, http.MethodGet, "/accounts/"+accountID+"/transactions", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListBeneficiaries returns saved payees for one account.
func (c *Client) ListBeneficiaries(ctx context.Context, accountID string) (*BeneficiariesResponse, error) {
	var out BeneficiariesResponse
	if err := c.doUser(ctx, http.MethodGet, "/accounts/"+accountID+"/beneficiaries", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
