package affluence

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrTimeout matches any *TimeoutError.
	ErrTimeout = errors.New("request timeout")

	// ErrUnauthorized matches a 401 *APIError.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound matches a 404 *APIError.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthenticated is returned when an operation needs a session and
	// none exists.
	ErrNotAuthenticated = errors.New("not authenticated: please login")
)

// defaultErrorMessage is used when the error body carries no message.
const defaultErrorMessage = "API request failed"

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
	// Detail holds the validation entries when the backend returned an
	// array-shaped "detail".
	Detail []ValidationDetail
	Body   []byte
}

// ValidationDetail is one entry of a pydantic-style validation error.
type ValidationDetail struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type,omitempty"`
}

// Field joins the location path with dots.
func (d ValidationDetail) Field() string {
	parts := make([]string, 0, len(d.Loc))
	for _, p := range d.Loc {
		switch v := p.(type) {
		case string:
			parts = append(parts, v)
		case float64:
			parts = append(parts, fmt.Sprintf("%.0f", v))
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, ".")
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Is lets errors.Is match the sentinel for well-known statuses.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// IsRetryable returns true for server errors and rate limiting.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// errorBody is the error shape produced by the backend.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// ParseErrorBody builds an APIError from a response status and body. A
// string "detail" wins, then an array "detail" joined as "loc: msg; ...",
// then "message", then the raw text.
func ParseErrorBody(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: body}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = defaultErrorMessage
		}
		apiErr.Message = text
		return apiErr
	}

	if len(eb.Detail) > 0 {
		var s string
		if json.Unmarshal(eb.Detail, &s) == nil && s != "" {
			apiErr.Message = s
			return apiErr
		}
		var details []ValidationDetail
		if json.Unmarshal(eb.Detail, &details) == nil && len(details) > 0 {
			apiErr.Detail = details
			msgs := make([]string, 0, len(details))
			for _, d := range details {
				if f := d.Field(); f != "" {
					msgs = append(msgs, f+": "+d.Msg)
				} else {
					msgs = append(msgs, d.Msg)
				}
			}
			apiErr.Message = strings.Join(msgs, "; ")
			return apiErr
		}
	}
	if eb.Message != "" {
		apiErr.Message = eb.Message
		return apiErr
	}
	apiErr.Message = defaultErrorMessage
	return apiErr
}

// TimeoutError is returned when no response arrives within the configured
// timeout.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timeout after %s", e.Timeout)
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Error wraps a transport failure with the operation that failed.
type Error struct {
	// Op is the operation that failed, e.g. "GET /users/me".
	Op string

	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError is a client-side check that failed before any request
// was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsRetryable returns true if the error is likely transient: timeouts,
// transport failures, 5xx and 429.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	if IsTimeout(err) {
		return true
	}
	var opErr *Error
	return errors.As(err, &opErr)
}
