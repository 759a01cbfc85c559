// Package affluence provides a Go client for the Affluence rewards and
// referral platform REST API.
package affluence

import "time"

// DefaultBaseURL is the hosted backend used when no override is configured.
const DefaultBaseURL = "https://affluence-backend-1wme.vercel.app/api"

// Default client settings.
const (
	DefaultTimeout    = 20 * time.Second
	DefaultMaxRetries = 0
	DefaultRetryDelay = 1 * time.Second
	DefaultUserAgent  = "affluence-go"
)

// Config holds all configuration for the Affluence API client.
type Config struct {
	// BaseURL is prefixed to every endpoint, without a trailing slash.
	BaseURL string

	// Timeout bounds each HTTP request, including reading the body.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts for retryable GET
	// requests. Zero disables retries.
	MaxRetries int

	// RetryDelay is the initial delay between retries (exponential backoff applied).
	RetryDelay time.Duration

	UserAgent string

	// Page is the path of the page (or command) issuing requests. It picks
	// the login target after a 401.
	Page string
}

// DefaultConfig returns a Config with the hosted backend and default settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		UserAgent:  DefaultUserAgent,
	}
}

// WithBaseURL returns a copy of the config with the specified base URL.
func (c Config) WithBaseURL(u string) Config {
	c.BaseURL = u
	return c
}

// WithTimeout returns a copy of the config with the specified timeout.
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

// WithRetries returns a copy of the config with the specified retry settings.
func (c Config) WithRetries(maxRetries int, retryDelay time.Duration) Config {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
	return c
}

// WithPage returns a copy of the config with the specified page path.
func (c Config) WithPage(page string) Config {
	c.Page = page
	return c
}
