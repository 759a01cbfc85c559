package affluence

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Login exchanges user credentials for a token and stores it in the session.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	return c.passwordLogin(ctx, "/auth/login", email, password)
}

// AdminLogin is Login against the admin endpoint.
func (c *Client) AdminLogin(ctx context.Context, email, password string) (*TokenResponse, error) {
	return c.passwordLogin(ctx, "/auth/admin/login", email, password)
}

// passwordLogin posts an OAuth2 password form: the email travels in the
// "username" field.
func (c *Client) passwordLogin(ctx context.Context, endpoint, email, password string) (*TokenResponse, error) {
	if err := ValidateLogin(email, password); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var tr TokenResponse
	if err := c.Post(ctx, endpoint, nil, &tr, WithForm(form), SkipAuth(), noSessionReset()); err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%s: response carried no access_token", endpoint)
	}
	if err := c.session.SetToken(ctx, tr.AccessToken); err != nil {
		return nil, err
	}
	c.logger.Info("logged in", "endpoint", endpoint)
	return &tr, nil
}

// Register creates an account. It does not log the user in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (map[string]any, error) {
	if err := ValidateRegistration(req); err != nil {
		return nil, err
	}
	var out map[string]any
	if err := c.Post(ctx, "/auth/register", req, &out, SkipAuth()); err != nil {
		return nil, err
	}
	return out, nil
}

// Logout ends the session locally. The backend keeps no server-side
// session to revoke.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// Health reports whether the backend answers /health.
func (c *Client) Health(ctx context.Context) bool {
	if _, err := c.Request(ctx, "GET", "/health", nil, SkipAuth()); err != nil {
		c.logger.Debug("health check failed", "error", err)
		return false
	}
	return true
}

// requireSession fails fast when there is no token to send.
func (c *Client) requireSession(ctx context.Context) error {
	if !c.session.IsAuthenticated(ctx) {
		return ErrNotAuthenticated
	}
	return nil
}

// IsAuthError reports whether err means the user must log in again.
func IsAuthError(err error) bool {
	return IsUnauthorized(err) || errors.Is(err, ErrNotAuthenticated)
}
