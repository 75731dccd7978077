package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

const (
	tokenPrefix   = "token:"
	channelPrefix = "token-events:"
)

// RedisStore keeps the token in Redis and announces changes on a pub/sub
// channel, so every process sharing the key observes writes
type RedisStore struct {
	client  *redis.Client
	key     string
	channel string
}

// NewRedisStore creates a Redis-backed store for the token named key
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{
		client:  client,
		key:     tokenPrefix + key,
		channel: channelPrefix + key,
	}
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Save stores the token and publishes a change notification
func (s *RedisStore) Save(ctx context.Context, token deviceflow.DeviceTokenSuccess) error {
	data, err := encodeToken(token)
	if err != nil {
		return err
	}

	// Use transaction so the notification never precedes the write
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key, data, 0)
	pipe.Publish(ctx, s.channel, "saved")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	return nil
}

// Current retrieves the stored token
func (s *RedisStore) Current(ctx context.Context) (*deviceflow.DeviceTokenSuccess, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting token: %w", err)
	}
	return decodeToken(data)
}

// Delete removes the token and publishes a change notification
func (s *RedisStore) Delete(ctx context.Context) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	pipe.Publish(ctx, s.channel, "deleted")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// Subscribe listens on the change channel and re-reads the token for every
// notification. The subscription is confirmed before the current value is read
// so no change between the two is lost.
func (s *RedisStore) Subscribe(ctx context.Context) (<-chan *deviceflow.DeviceTokenSuccess, error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribing to token events: %w", err)
	}

	initial, err := s.Current(ctx)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	ch := make(chan *deviceflow.DeviceTokenSuccess, 1)
	ch <- initial

	go func() {
		defer close(ch)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				token, err := s.Current(ctx)
				if err != nil {
					continue
				}
				offerLatest(ch, token)
			}
		}
	}()

	return ch, nil
}
