package errors

import (
	"errors"
	"fmt"
)

// Common error types for the Whoop scraper
var (
	// Authentication errors
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrNoStoredCredentials = errors.New("no stored tokens and no refresh token provided")

	// Token grant errors
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrRefreshFailed       = errors.New("token refresh failed")

	// Interactive authorization errors
	ErrAuthorizationDenied  = errors.New("authorization denied")
	ErrAuthorizationTimeout = errors.New("authorization timed out")
	ErrStateMismatch        = errors.New("state mismatch - possible CSRF attack")

	// API errors
	ErrAPIRequestFailed = errors.New("api request failed")
	ErrTooManyPages     = errors.New("pagination exceeded maximum page count")

	// Storage errors
	ErrPersistence = errors.New("persistence error")
	ErrSchema      = errors.New("malformed stored token data")
)

// APIError carries the HTTP status and response body of a failed API request
// for diagnosis. It matches ErrAPIRequestFailed under errors.Is.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api request failed: status %d: %s", e.Status, e.Body)
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPIRequestFailed
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
