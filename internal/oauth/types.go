// Package oauth provides the OAuth2 provider integration for the device
// authorization grant (RFC 8628)
package oauth

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// DeviceCodeGrantType is the grant_type sent with device access token requests
const DeviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

const defaultTimeout = 10 * time.Second

// ErrInvalidEndpoint is returned when a provider endpoint is missing
var ErrInvalidEndpoint = errors.New("invalid provider endpoint")

// Config holds the provider endpoints and HTTP settings
type Config struct {
	// DeviceAuthURL is the device authorization endpoint
	DeviceAuthURL string
	// TokenURL is the token endpoint polled for the access token
	TokenURL string
	// Scopes requested during device authorization
	Scopes []string
	// HTTPClient overrides the default client
	HTTPClient *http.Client
}

// GitHubConfig returns the configuration for GitHub's device flow
func GitHubConfig(scopes ...string) Config {
	return Config{
		DeviceAuthURL: github.Endpoint.DeviceAuthURL,
		TokenURL:      github.Endpoint.TokenURL,
		Scopes:        scopes,
	}
}

// endpoint converts the configuration to an oauth2 endpoint
func (c Config) endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		DeviceAuthURL: c.DeviceAuthURL,
		TokenURL:      c.TokenURL,
		AuthStyle:     oauth2.AuthStyleInParams,
	}
}

// tokenResponse is the device access token response body, success or error
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
