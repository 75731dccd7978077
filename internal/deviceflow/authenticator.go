// Package deviceflow implements the client side of the OAuth 2.0 Device
// Authorization Grant per RFC 8628: device code initiation, token polling
// with adaptive backoff, and verified token persistence.
package deviceflow

import (
	"context"
	"errors"
	"fmt"
)

// Authenticator composes the device flow components and exposes the
// authentication signal derived from the token store
type Authenticator struct {
	clientID  string
	store     TokenStore
	initiator *Initiator
	poller    *Poller
}

// NewAuthenticator creates an authenticator for clientID. A blank clientID is
// reported by StartDeviceFlow, not here.
func NewAuthenticator(provider Provider, store TokenStore, clientID string, opts ...Option) *Authenticator {
	s := newSettings(opts)
	return &Authenticator{
		clientID:  clientID,
		store:     store,
		initiator: NewInitiator(provider),
		poller:    newPoller(provider, store, s),
	}
}

// IsAuthenticated reports whether the store currently holds a token
func (a *Authenticator) IsAuthenticated(ctx context.Context) (bool, error) {
	token, err := a.store.Current(ctx)
	if err != nil {
		return false, fmt.Errorf("reading current token: %w", err)
	}
	return token != nil, nil
}

// StartDeviceFlow begins a new authentication attempt
func (a *Authenticator) StartDeviceFlow(ctx context.Context) (*DeviceStart, error) {
	return a.initiator.Start(ctx, a.clientID)
}

// AwaitDeviceToken polls until start reaches a terminal outcome
func (a *Authenticator) AwaitDeviceToken(ctx context.Context, start DeviceStart) Outcome {
	return a.poller.Await(ctx, a.clientID, start)
}

// Login runs a complete attempt. onStart is called with the device parameters
// so they can be shown to the user before polling begins.
func (a *Authenticator) Login(ctx context.Context, onStart func(DeviceStart)) (Outcome, error) {
	start, err := a.StartDeviceFlow(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if onStart != nil {
		onStart(*start)
	}
	return a.AwaitDeviceToken(ctx, *start), nil
}

// SignOut removes the stored token
func (a *Authenticator) SignOut(ctx context.Context) error {
	if err := a.store.Delete(ctx); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// Watch streams the authentication state on every store change, starting with
// the current state. Writes made outside this authenticator are observed too.
// The channel is closed when ctx is done.
func (a *Authenticator) Watch(ctx context.Context) (<-chan AuthState, error) {
	tokens, err := a.store.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribing to token store: %w", err)
	}

	states := make(chan AuthState)
	go func() {
		defer close(states)
		for token := range tokens {
			select {
			case states <- stateOf(token):
			case <-ctx.Done():
				return
			}
		}
	}()
	return states, nil
}

// AccessTokens streams the raw access token value, empty when signed out
func (a *Authenticator) AccessTokens(ctx context.Context) (<-chan string, error) {
	states, err := a.Watch(ctx)
	if err != nil {
		return nil, err
	}

	tokens := make(chan string)
	go func() {
		defer close(tokens)
		for state := range states {
			select {
			case tokens <- state.AccessToken:
			case <-ctx.Done():
				return
			}
		}
	}()
	return tokens, nil
}

// CheckHealth verifies the token store is healthy
func (a *Authenticator) CheckHealth(ctx context.Context) error {
	if err := a.store.CheckHealth(ctx); err != nil {
		return fmt.Errorf("token store: %w", err)
	}
	return nil
}

// IsConfigurationError reports whether err is a pre-flight configuration failure
func IsConfigurationError(err error) bool {
	var cerr *ConfigurationError
	return errors.As(err, &cerr)
}
