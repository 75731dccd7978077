// Package tokenstore implements durable storage for device flow access tokens.
// Every store delivers change notifications to subscribers so that writes from
// other processes or components update the authentication signal.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

var (
	// ErrStoreUnhealthy indicates the storage backend is not available
	ErrStoreUnhealthy = errors.New("token store unhealthy")

	// ErrEmptyToken indicates an attempt to store a token without an access token
	ErrEmptyToken = errors.New("empty access token")
)

// Compile-time interface checks
var (
	_ deviceflow.TokenStore = (*MemoryStore)(nil)
	_ deviceflow.TokenStore = (*FileStore)(nil)
	_ deviceflow.TokenStore = (*RedisStore)(nil)
	_ deviceflow.TokenStore = (*KeyringStore)(nil)
)

func encodeToken(token deviceflow.DeviceTokenSuccess) ([]byte, error) {
	if token.AccessToken == "" {
		return nil, ErrEmptyToken
	}
	data, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("marshaling token: %w", err)
	}
	return data, nil
}

func decodeToken(data []byte) (*deviceflow.DeviceTokenSuccess, error) {
	var token deviceflow.DeviceTokenSuccess
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("unmarshaling token: %w", err)
	}
	return &token, nil
}
