package affluence

import (
	"context"
	"fmt"
	"net/url"
)

// Profile returns the current user.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := c.Get(ctx, "/users/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile updates the current user's profile fields.
func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*User, error) {
	if upd.Email != nil {
		if err := ValidateEmail(*upd.Email); err != nil {
			return nil, err
		}
	}
	var u User
	if err := c.Put(ctx, "/users/me", upd, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateBankDetails stores the payout account of the current user.
func (c *Client) UpdateBankDetails(ctx context.Context, b BankDetails) (*User, error) {
	if err := ValidateBankDetails(b); err != nil {
		return nil, err
	}
	var u User
	if err := c.Put(ctx, "/users/me/bank-details", b, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangePassword changes the current user's password. confirm must equal next.
func (c *Client) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if err := ValidatePasswordChange(current, next, confirm); err != nil {
		return err
	}
	body := map[string]string{
		"current_password": current,
		"new_password":     next,
	}
	return c.Post(ctx, "/users/me/change-password", body, nil)
}

// Dashboard returns the balances and stats of the current user.
func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	if err := c.Get(ctx, "/users/dashboard", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Referrals returns the referral code and referred users.
func (c *Client) Referrals(ctx context.Context) (*ReferralInfo, error) {
	var r ReferralInfo
	if err := c.Get(ctx, "/users/referrals", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// TopEarners returns the leaderboard. Backends without /users/top-earners
// serve it at /leaderboard, which is tried only on a 404.
func (c *Client) TopEarners(ctx context.Context, limit int) ([]TopEarner, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{"limit": {fmt.Sprint(limit)}}

	var out []TopEarner
	err := c.Get(ctx, "/users/top-earners", &out, WithQuery(q))
	if IsNotFound(err) {
		c.logger.Debug("top-earners endpoint missing, trying leaderboard")
		err = c.Get(ctx, "/leaderboard", &out, WithQuery(q))
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Notifications returns one page of notifications.
func (c *Client) Notifications(ctx context.Context, skip, limit int) ([]Notification, error) {
	var out []Notification
	if err := c.Get(ctx, "/users/notifications", &out, WithQuery(pageQuery(skip, limit))); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead marks a notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.Put(ctx, "/users/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// Transactions returns one page of the user's ledger.
func (c *Client) Transactions(ctx context.Context, skip, limit int) ([]Transaction, error) {
	var out []Transaction
	if err := c.Get(ctx, "/users/transactions", &out, WithQuery(pageQuery(skip, limit))); err != nil {
		return nil, err
	}
	return out, nil
}
