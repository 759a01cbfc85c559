package affluence

import (
	"context"
	"net/url"
)

// ApplyLoan submits a loan application.
func (c *Client) ApplyLoan(ctx context.Context, req LoanRequest) (*Loan, error) {
	if err := ValidateLoan(req); err != nil {
		return nil, err
	}
	var l Loan
	if err := c.Post(ctx, "/loans/", req, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Loans returns one page of the user's loan applications.
func (c *Client) Loans(ctx context.Context, skip, limit int) ([]Loan, error) {
	var out []Loan
	if err := c.Get(ctx, "/loans/", &out, WithQuery(pageQuery(skip, limit))); err != nil {
		return nil, err
	}
	return out, nil
}

// Loan returns a single loan application.
func (c *Client) Loan(ctx context.Context, id string) (*Loan, error) {
	var l Loan
	if err := c.Get(ctx, "/loans/"+url.PathEscape(id), &l); err != nil {
		return nil, err
	}
	return &l, nil
}
