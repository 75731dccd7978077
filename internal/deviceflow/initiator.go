package deviceflow

import (
	"context"
	"errors"
	"strings"

	"github.com/wrale/oauth2-device-client/internal/validation"
)

const initiationMessage = "Failed to start authentication. Please check your connection and try again."

// defaultIntervalSec is the poll interval when the provider omits one per RFC 8628 section 3.2
const defaultIntervalSec = 5

// Initiator performs the device authorization request per RFC 8628 section 3.1
type Initiator struct {
	provider Provider
}

// NewInitiator creates an initiator for provider
func NewInitiator(provider Provider) *Initiator {
	return &Initiator{provider: provider}
}

// Start requests a device and user code pair. A blank clientID fails with a
// *ConfigurationError before any request is made. Provider failures and
// unusable responses are wrapped in an *InitiationError and never retried.
func (i *Initiator) Start(ctx context.Context, clientID string) (*DeviceStart, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, &ConfigurationError{
			Field:   "client_id",
			Message: "OAuth client ID is not configured",
			Err:     ErrMissingClientID,
		}
	}

	start, err := i.provider.StartDeviceFlow(ctx, clientID)
	if err != nil {
		return nil, &InitiationError{Message: initiationMessage, Err: err}
	}
	if err := checkDeviceStart(start); err != nil {
		return nil, &InitiationError{Message: initiationMessage, Err: err}
	}

	result := *start
	if result.IntervalSec <= 0 {
		result.IntervalSec = defaultIntervalSec
	}
	return &result, nil
}

// checkDeviceStart rejects provider responses the poller cannot work with
func checkDeviceStart(start *DeviceStart) error {
	if start == nil {
		return errors.New("empty device authorization response")
	}
	if start.DeviceCode == "" {
		return errors.New("device authorization response missing device_code")
	}
	if start.ExpiresInSec <= 0 {
		return errors.New("device authorization response missing expires_in")
	}
	if err := validation.ValidateUserCode(start.UserCode); err != nil {
		return err
	}
	return validation.ValidateVerificationURI(start.VerificationURI)
}
