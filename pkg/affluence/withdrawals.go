package affluence

import (
	"context"
	"net/url"
)

type withdrawalRequest struct {
	Amount      float64     `json:"amount"`
	BalanceType BalanceType `json:"balance_type"`
}

// CreateWithdrawal requests a payout from one of the user's balances.
func (c *Client) CreateWithdrawal(ctx context.Context, amount float64, balanceType BalanceType) (*Withdrawal, error) {
	if err := ValidateWithdrawal(amount, balanceType); err != nil {
		return nil, err
	}
	var w Withdrawal
	if err := c.Post(ctx, "/withdrawals/", withdrawalRequest{Amount: amount, BalanceType: balanceType}, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Withdrawals returns one page of the user's withdrawals.
func (c *Client) Withdrawals(ctx context.Context, skip, limit int) ([]Withdrawal, error) {
	var out []Withdrawal
	if err := c.Get(ctx, "/withdrawals/", &out, WithQuery(pageQuery(skip, limit))); err != nil {
		return nil, err
	}
	return out, nil
}

// Withdrawal returns a single withdrawal.
func (c *Client) Withdrawal(ctx context.Context, id string) (*Withdrawal, error) {
	var w Withdrawal
	if err := c.Get(ctx, "/withdrawals/"+url.PathEscape(id), &w); err != nil {
		return nil, err
	}
	return &w, nil
}
