package auth

import (
	"errors"
	"fmt"
	"time"
)

// ErrAuthRequired is returned when no credential exists for a server and an
// authentication flow must be run to obtain one.
var ErrAuthRequired = errors.New("authentication required")

// ErrRegistrationUnavailable is returned when the authorization server does
// not offer dynamic client registration and no static client credentials
// were configured.
var ErrRegistrationUnavailable = errors.New("dynamic client registration unavailable")

// DiscoveryError indicates that authorization server metadata could not be
// located or was malformed. Fatal for the current attempt; a fresh attempt
// may succeed once the server recovers.
type DiscoveryError struct {
	Issuer string
	Err    error
}

func (e *DiscoveryError) Error() string {
	if e.Issuer != "" {
		return fmt.Sprintf("failed to discover authorization server %s: %v", e.Issuer, e.Err)
	}
	return fmt.Sprintf("failed to discover authorization server: %v", e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// RegistrationError indicates that dynamic client registration failed or is
// not offered by the authorization server. When the server has no
// registration endpoint at all, Err is ErrRegistrationUnavailable.
type RegistrationError struct {
	Endpoint string
	Err      error
}

func (e *RegistrationError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("client registration at %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("client registration failed: %v", e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// CallbackTimeoutError indicates that the user did not complete the browser
// interaction before the callback wait expired.
type CallbackTimeoutError struct {
	Timeout time.Duration
}

func (e *CallbackTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for the authorization callback", e.Timeout)
}

// CallbackStateMismatchError indicates that the callback carried a state
// parameter that does not match the one generated for this attempt. The
// authorization code from such a callback is never exchanged.
type CallbackStateMismatchError struct{}

func (e *CallbackStateMismatchError) Error() string {
	return "authorization callback state mismatch, possible CSRF or stale callback"
}

// AuthorizationDeniedError indicates that the authorization server redirected
// back with an error instead of a code, typically because the user denied
// consent. Never retried automatically.
type AuthorizationDeniedError struct {
	Code        string
	Description string
}

func (e *AuthorizationDeniedError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization denied: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization denied: %s", e.Code)
}

// TokenExchangeError indicates that the token endpoint rejected a code
// exchange or refresh request.
type TokenExchangeError struct {
	// Op is "exchange" or "refresh".
	Op  string
	Err error
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token %s failed: %v", e.Op, e.Err)
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}

// AuthenticationError is the single error type surfaced to callers when an
// authentication attempt fails. The step-specific cause is reachable through
// errors.As / errors.Is.
type AuthenticationError struct {
	ServerURL string
	Err       error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.ServerURL, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IsAuthorizationDenied reports whether err contains an
// AuthorizationDeniedError anywhere in its chain. Callers use this to
// suppress automatic retries after the user declined consent.
func IsAuthorizationDenied(err error) bool {
	var denied *AuthorizationDeniedError
	return errors.As(err, &denied)
}
