package deviceflow

import "fmt"

// OutcomeKind identifies the terminal state of a polling attempt
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeCancelled
	OutcomeTimedOut
	OutcomeDenied
	OutcomeExpired
	OutcomeInvalidCode
	OutcomeRateLimited
	OutcomeNetworkFailure
	OutcomeUnknownFailure
	OutcomePersistenceFailure
)

var outcomeNames = map[OutcomeKind]string{
	OutcomeSuccess:            "success",
	OutcomeCancelled:          "cancelled",
	OutcomeTimedOut:           "timed_out",
	OutcomeDenied:             "denied",
	OutcomeExpired:            "expired",
	OutcomeInvalidCode:        "invalid_code",
	OutcomeRateLimited:        "rate_limited",
	OutcomeNetworkFailure:     "network_failure",
	OutcomeUnknownFailure:     "unknown_failure",
	OutcomePersistenceFailure: "persistence_failure",
}

func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// Guidance tells the presentation layer what to suggest after an outcome
type Guidance string

const (
	GuidanceNone           Guidance = "none"
	GuidanceReauthenticate Guidance = "reauthenticate"
	GuidanceCheckNetwork   Guidance = "check_network"
	GuidanceWaitAndRetry   Guidance = "wait_and_retry"
	GuidanceRetry          Guidance = "retry"
)

// Outcome is the terminal result of AwaitDeviceToken.
// Token is set only for OutcomeSuccess.
type Outcome struct {
	Kind    OutcomeKind
	Token   *DeviceTokenSuccess
	Message string // User facing
	Cause   error  // Diagnostic detail, may be nil
}

// Succeeded reports whether a token was issued and persisted
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// Guidance returns the suggested follow-up for the outcome
func (o Outcome) Guidance() Guidance {
	switch o.Kind {
	case OutcomeSuccess, OutcomeCancelled:
		return GuidanceNone
	case OutcomeDenied, OutcomeExpired, OutcomeInvalidCode, OutcomeTimedOut:
		return GuidanceReauthenticate
	case OutcomeNetworkFailure:
		return GuidanceCheckNetwork
	case OutcomeRateLimited:
		return GuidanceWaitAndRetry
	default:
		return GuidanceRetry
	}
}

// Err converts a non-success outcome into an error, nil on success
func (o Outcome) Err() error {
	if o.Kind == OutcomeSuccess {
		return nil
	}
	return &OutcomeError{Outcome: o}
}

// OutcomeError exposes a terminal outcome through the error interface
type OutcomeError struct {
	Outcome Outcome
}

func (e *OutcomeError) Error() string {
	if e.Outcome.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Outcome.Message, e.Outcome.Cause)
	}
	return e.Outcome.Message
}

func (e *OutcomeError) Unwrap() error {
	return e.Outcome.Cause
}

func (e *OutcomeError) Is(target error) bool {
	return target == sentinelFor(e.Outcome.Kind)
}

func sentinelFor(k OutcomeKind) error {
	switch k {
	case OutcomeCancelled:
		return ErrCancelled
	case OutcomeTimedOut:
		return ErrTimedOut
	case OutcomeDenied:
		return ErrDenied
	case OutcomeExpired:
		return ErrExpired
	case OutcomeInvalidCode:
		return ErrInvalidCode
	case OutcomeRateLimited:
		return ErrRateLimited
	case OutcomeNetworkFailure:
		return ErrNetwork
	case OutcomeUnknownFailure:
		return ErrUnknown
	case OutcomePersistenceFailure:
		return ErrPersistence
	}
	return nil
}

func success(token DeviceTokenSuccess) Outcome {
	return Outcome{Kind: OutcomeSuccess, Token: &token, Message: "Signed in successfully."}
}

func cancelled(cause error) Outcome {
	return Outcome{Kind: OutcomeCancelled, Message: "Authentication was cancelled.", Cause: cause}
}

func timedOut(start DeviceStart) Outcome {
	return Outcome{
		Kind:    OutcomeTimedOut,
		Message: fmt.Sprintf("Authentication timed out after %d seconds. Please try again.", start.ExpiresInSec),
	}
}

// failure builds the outcome for a terminal poll result
func failure(k OutcomeKind, cause error) Outcome {
	o := Outcome{Kind: k, Cause: cause}
	switch k {
	case OutcomeDenied:
		o.Message = "Authentication was denied. Please try again if this was a mistake."
	case OutcomeExpired:
		o.Message = "Authorization code expired. Please try again."
	case OutcomeInvalidCode:
		o.Message = "Invalid verification code. Please restart authentication."
	case OutcomeRateLimited:
		o.Message = "The provider is experiencing high traffic. Please wait a few minutes and try again."
	case OutcomeNetworkFailure:
		o.Message = "Network connection is unstable. Please check your connection and try again."
	case OutcomeUnknownFailure:
		o.Message = "Authentication failed after multiple errors. Please try again."
	case OutcomePersistenceFailure:
		o.Message = "Authorization succeeded but the token could not be saved. Please try again."
	}
	return o
}
