package deviceflow

import "time"

// DeviceStart holds the device authorization response per RFC 8628 section 3.2.
// It is issued once per authentication attempt and never modified.
type DeviceStart struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresInSec    int    `json:"expires_in"` // Grant lifetime in seconds
	IntervalSec     int    `json:"interval"`   // Minimum poll spacing in seconds

	// Optional verification_uri_complete field per RFC 8628 section 3.3.1
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
}

// Lifetime returns the grant lifetime as a duration
func (s DeviceStart) Lifetime() time.Duration {
	return time.Duration(s.ExpiresInSec) * time.Second
}

// DeviceTokenSuccess represents the token response per RFC 8628 section 3.5.
// Once persisted it is the durable credential.
type DeviceTokenSuccess struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope,omitempty"`
}

// AuthState is a snapshot of the authentication signal derived from the token store
type AuthState struct {
	Authenticated bool
	AccessToken   string
}

func stateOf(token *DeviceTokenSuccess) AuthState {
	if token == nil {
		return AuthState{}
	}
	return AuthState{Authenticated: true, AccessToken: token.AccessToken}
}
