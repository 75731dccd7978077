package deviceflow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// errTokenMismatch indicates the read-back token differs from the written one
var errTokenMismatch = errors.New("stored token does not match written token")

// Persistor writes tokens and verifies they were durably stored
type Persistor struct {
	store    TokenStore
	sleep    SleepFunc
	observer Observer
	settle   time.Duration
	attempts int
	backoff  time.Duration
}

// NewPersistor creates a persistor writing to store
func NewPersistor(store TokenStore, opts ...Option) *Persistor {
	return newPersistor(store, newSettings(opts))
}

func newPersistor(store TokenStore, s settings) *Persistor {
	return &Persistor{
		store:    store,
		sleep:    s.sleep,
		observer: s.observer,
		settle:   s.settleDelay,
		attempts: s.persistAttempts,
		backoff:  s.persistBackoff,
	}
}

// Persist writes token, waits for the store to settle and reads it back.
// The cycle is retried until the read-back matches or attempts run out, in
// which case a *PersistenceError is returned. Context errors are returned as is.
func (p *Persistor) Persist(ctx context.Context, token DeviceTokenSuccess) error {
	return p.persist(ctx, "", token)
}

func (p *Persistor) persist(ctx context.Context, attemptID string, token DeviceTokenSuccess) error {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		err := p.writeAndVerify(ctx, token)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		lastErr = err

		p.observer.Observe(Event{
			Kind:           EventPersistRetry,
			Attempt:        attemptID,
			PersistAttempt: attempt,
			Err:            err,
		})

		if attempt == p.attempts {
			break
		}
		if err := p.sleep(ctx, p.backoff*time.Duration(attempt)); err != nil {
			return err
		}
	}
	return &PersistenceError{Attempts: p.attempts, Err: lastErr}
}

func (p *Persistor) writeAndVerify(ctx context.Context, token DeviceTokenSuccess) error {
	if err := p.store.Save(ctx, token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	if err := p.sleep(ctx, p.settle); err != nil {
		return err
	}
	stored, err := p.store.Current(ctx)
	if err != nil {
		return fmt.Errorf("reading back token: %w", err)
	}
	if stored == nil || stored.AccessToken != token.AccessToken {
		return errTokenMismatch
	}
	return nil
}
