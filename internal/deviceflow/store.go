package deviceflow

import "context"

// TokenStore defines the storage medium for the durable credential.
// Implementations live in the tokenstore package.
type TokenStore interface {
	// Save replaces the stored token
	Save(ctx context.Context, token DeviceTokenSuccess) error

	// Current returns the stored token, or nil when none is stored
	Current(ctx context.Context) (*DeviceTokenSuccess, error)

	// Delete removes the stored token
	Delete(ctx context.Context) error

	// Subscribe streams the stored token (nil when absent) on every change.
	// The current value is delivered first. The channel is closed when ctx is done.
	Subscribe(ctx context.Context) (<-chan *DeviceTokenSuccess, error)

	// CheckHealth verifies the storage backend is healthy
	CheckHealth(ctx context.Context) error
}

// Provider defines the OAuth provider endpoints consumed by the device flow
type Provider interface {
	// StartDeviceFlow performs the device authorization request
	StartDeviceFlow(ctx context.Context, clientID string) (*DeviceStart, error)

	// PollDeviceToken performs a single device access token request.
	// Protocol level failures are reported as *ProviderError.
	PollDeviceToken(ctx context.Context, clientID, deviceCode string) (*DeviceTokenSuccess, error)
}
