package tokenstore

import (
	"context"
	"sync"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

// MemoryStore keeps the token in process memory
type MemoryStore struct {
	mu    sync.Mutex
	token *deviceflow.DeviceTokenSuccess
	subs  *broadcaster
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: newBroadcaster()}
}

// Save stores token and notifies subscribers
func (s *MemoryStore) Save(ctx context.Context, token deviceflow.DeviceTokenSuccess) error {
	if token.AccessToken == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &token
	s.subs.publish(s.token)
	return nil
}

// Current returns a copy of the stored token
func (s *MemoryStore) Current(ctx context.Context) (*deviceflow.DeviceTokenSuccess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyToken(s.token), nil
}

// Delete removes the token and notifies subscribers
func (s *MemoryStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
	s.subs.publish(nil)
	return nil
}

// Subscribe streams the token on every change
func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan *deviceflow.DeviceTokenSuccess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs.subscribe(ctx, s.token), nil
}

// CheckHealth always succeeds
func (s *MemoryStore) CheckHealth(ctx context.Context) error {
	return nil
}
