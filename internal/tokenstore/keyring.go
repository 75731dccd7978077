package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

// KeyringStore keeps the token in the operating system credential store.
// The keychain offers no change notifications, so subscribers only observe
// writes made through this store.
type KeyringStore struct {
	service string
	user    string
	mu      sync.Mutex
	subs    *broadcaster
}

// NewKeyringStore creates a store for the credential identified by service and user
func NewKeyringStore(service, user string) *KeyringStore {
	return &KeyringStore{
		service: service,
		user:    user,
		subs:    newBroadcaster(),
	}
}

// Save writes the token to the keychain
func (s *KeyringStore) Save(ctx context.Context, token deviceflow.DeviceTokenSuccess) error {
	data, err := encodeToken(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := keyring.Set(s.service, s.user, string(data)); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}
	s.subs.publish(&token)
	return nil
}

// Current reads the token from the keychain
func (s *KeyringStore) Current(ctx context.Context) (*deviceflow.DeviceTokenSuccess, error) {
	data, err := keyring.Get(s.service, s.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	return decodeToken([]byte(data))
}

// Delete removes the token from the keychain
func (s *KeyringStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := keyring.Delete(s.service, s.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting keyring entry: %w", err)
	}
	s.subs.publish(nil)
	return nil
}

// Subscribe streams the token on every change made through this store
func (s *KeyringStore) Subscribe(ctx context.Context) (<-chan *deviceflow.DeviceTokenSuccess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	initial, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.subs.subscribe(ctx, initial), nil
}

// CheckHealth verifies the keychain can be read
func (s *KeyringStore) CheckHealth(ctx context.Context) error {
	if _, err := keyring.Get(s.service, s.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrStoreUnhealthy, err)
	}
	return nil
}
