package deviceflow

import (
	"errors"
	"fmt"
)

// Common errors that may occur during the device authorization flow
var (
	// ErrMissingClientID indicates the OAuth client identifier is not configured
	ErrMissingClientID = errors.New("missing client id")

	// ErrInitiation indicates the device authorization request failed
	ErrInitiation = errors.New("device flow initiation failed")

	// ErrPersistence indicates a token could not be durably stored
	ErrPersistence = errors.New("token persistence failed")

	// ErrCancelled indicates the attempt was cancelled by the caller
	ErrCancelled = errors.New("authentication cancelled")

	// ErrTimedOut indicates the grant lifetime elapsed while polling
	ErrTimedOut = errors.New("authentication timed out")

	// ErrDenied indicates the user denied the authorization request
	ErrDenied = errors.New("access denied")

	// ErrExpired indicates the device code expired per RFC 8628 section 3.5
	ErrExpired = errors.New("device code expired")

	// ErrInvalidCode indicates the provider rejected the device code
	ErrInvalidCode = errors.New("invalid device code")

	// ErrRateLimited indicates the provider kept asking to slow down
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrNetwork indicates the network error budget was exhausted
	ErrNetwork = errors.New("network failure")

	// ErrUnknown indicates the unknown error budget was exhausted
	ErrUnknown = errors.New("unknown failure")
)

// ConfigurationError is a pre-flight failure caused by missing or invalid settings
type ConfigurationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// InitiationError wraps a failed device authorization request.
// Message is safe to show to users; the cause is kept for diagnostics.
type InitiationError struct {
	Message string
	Err     error
}

func (e *InitiationError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *InitiationError) Unwrap() error {
	return e.Err
}

func (e *InitiationError) Is(target error) bool {
	return target == ErrInitiation
}

// ProviderError is an OAuth error response per RFC 6749 section 5.2
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// PersistenceError reports that no write could be verified
type PersistenceError struct {
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("token not persisted after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("token not persisted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
