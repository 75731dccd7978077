package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

// maxResponseSize bounds token endpoint response bodies
const maxResponseSize = 1 << 20

// Provider implements deviceflow.Provider against standard RFC 8628 endpoints
type Provider struct {
	client *http.Client
	cfg    Config
}

var _ deviceflow.Provider = (*Provider)(nil)

// NewProvider creates a new device flow provider
func NewProvider(cfg Config) (*Provider, error) {
	if err := checkEndpoint("device authorization", cfg.DeviceAuthURL); err != nil {
		return nil, err
	}
	if err := checkEndpoint("token", cfg.TokenURL); err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &Provider{client: client, cfg: cfg}, nil
}

func checkEndpoint(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: %s URL is required", ErrInvalidEndpoint, name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %s URL %q must be an absolute http(s) URL", ErrInvalidEndpoint, name, raw)
	}
	return nil
}

// StartDeviceFlow performs the device authorization request
func (p *Provider) StartDeviceFlow(ctx context.Context, clientID string) (*deviceflow.DeviceStart, error) {
	conf := &oauth2.Config{
		ClientID: clientID,
		Endpoint: p.cfg.endpoint(),
		Scopes:   p.cfg.Scopes,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	resp, err := conf.DeviceAuth(ctx)
	if err != nil {
		if perr := providerErrorFrom(err); perr != nil {
			return nil, perr
		}
		return nil, fmt.Errorf("device authorization request: %w", err)
	}

	start := &deviceflow.DeviceStart{
		DeviceCode:              resp.DeviceCode,
		UserCode:                resp.UserCode,
		VerificationURI:         resp.VerificationURI,
		VerificationURIComplete: resp.VerificationURIComplete,
		IntervalSec:             int(resp.Interval),
	}
	if !resp.Expiry.IsZero() {
		start.ExpiresInSec = int(math.Round(time.Until(resp.Expiry).Seconds()))
	}

	return start, nil
}

// PollDeviceToken performs a single device access token request.
// Error bodies from the token endpoint become *deviceflow.ProviderError;
// failures to reach the endpoint are returned as wrapped transport errors.
func (p *Provider) PollDeviceToken(ctx context.Context, clientID, deviceCode string) (*deviceflow.DeviceTokenSuccess, error) {
	data := url.Values{
		"grant_type":  {DeviceCodeGrantType},
		"device_code": {deviceCode},
		"client_id":   {clientID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &deviceflow.ProviderError{Code: "unexpected_status", Description: resp.Status}
		}
		return nil, &deviceflow.ProviderError{Code: "invalid_response", Description: "malformed token response"}
	}

	// Some providers answer pending polls with 200 and an error body
	if tokenResp.Error != "" {
		return nil, &deviceflow.ProviderError{
			Code:        tokenResp.Error,
			Description: tokenResp.ErrorDescription,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &deviceflow.ProviderError{Code: "unexpected_status", Description: resp.Status}
	}
	if tokenResp.AccessToken == "" {
		return nil, &deviceflow.ProviderError{Code: "invalid_response", Description: "missing access_token"}
	}

	return &deviceflow.DeviceTokenSuccess{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
		Scope:       tokenResp.Scope,
	}, nil
}

// providerErrorFrom extracts the OAuth error body from a failed oauth2 request
func providerErrorFrom(err error) *deviceflow.ProviderError {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return nil
	}
	if retrieveErr.ErrorCode != "" {
		return &deviceflow.ProviderError{
			Code:        retrieveErr.ErrorCode,
			Description: retrieveErr.ErrorDescription,
		}
	}
	var body tokenResponse
	if json.Unmarshal(retrieveErr.Body, &body) == nil && body.Error != "" {
		return &deviceflow.ProviderError{Code: body.Error, Description: body.ErrorDescription}
	}
	status := "unknown status"
	if retrieveErr.Response != nil {
		status = retrieveErr.Response.Status
	}
	return &deviceflow.ProviderError{Code: "unexpected_status", Description: status}
}
