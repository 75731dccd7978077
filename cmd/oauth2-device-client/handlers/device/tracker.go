package device

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

var (
	// ErrAttemptInProgress is returned when an attempt is started while another is polling
	ErrAttemptInProgress = errors.New("an authentication attempt is already in progress")

	// ErrNoAttempt is returned when there is no attempt to cancel
	ErrNoAttempt = errors.New("no authentication attempt in progress")
)

// Flow is the part of the authenticator driven by the tracker
type Flow interface {
	StartDeviceFlow(ctx context.Context) (*deviceflow.DeviceStart, error)
	AwaitDeviceToken(ctx context.Context, start deviceflow.DeviceStart) deviceflow.Outcome
}

// Attempt is a snapshot of a background authentication attempt
type Attempt struct {
	ID        string
	Start     deviceflow.DeviceStart
	StartedAt time.Time
	// Outcome is nil while the attempt is polling
	Outcome *deviceflow.Outcome
}

type attempt struct {
	Attempt
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Tracker runs at most one authentication attempt at a time in the
// background and remembers the latest one
type Tracker struct {
	flow Flow
	base context.Context

	mu      sync.Mutex
	current *attempt
	latest  *attempt
}

// NewTracker creates a tracker. Background polls derive from base, so
// cancelling base cancels the attempt in flight.
func NewTracker(base context.Context, flow Flow) *Tracker {
	return &Tracker{flow: flow, base: base}
}

// Begin starts a new attempt and returns once the device code has been issued.
// Polling continues in the background.
func (t *Tracker) Begin(ctx context.Context) (Attempt, error) {
	pollCtx, cancel := context.WithCancel(t.base)
	a := &attempt{
		Attempt: Attempt{ID: uuid.NewString()},
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	t.mu.Lock()
	if t.current != nil {
		t.mu.Unlock()
		cancel()
		return Attempt{}, ErrAttemptInProgress
	}
	t.current = a
	t.mu.Unlock()

	start, err := t.flow.StartDeviceFlow(ctx)
	if err != nil {
		cancel()
		t.mu.Lock()
		t.current = nil
		t.mu.Unlock()
		close(a.done)
		return Attempt{}, err
	}

	t.mu.Lock()
	a.Start = *start
	a.StartedAt = time.Now()
	a.started = true
	t.latest = a
	snapshot := a.Attempt
	t.mu.Unlock()

	go t.await(pollCtx, a)
	return snapshot, nil
}

func (t *Tracker) await(ctx context.Context, a *attempt) {
	outcome := t.flow.AwaitDeviceToken(ctx, a.Start)
	outcome.Token = nil
	a.cancel()

	t.mu.Lock()
	a.Outcome = &outcome
	if t.current == a {
		t.current = nil
	}
	t.mu.Unlock()
	close(a.done)
}

// Cancel stops the attempt in flight and waits for its outcome
func (t *Tracker) Cancel(ctx context.Context) (Attempt, error) {
	t.mu.Lock()
	a := t.current
	t.mu.Unlock()
	if a == nil {
		return Attempt{}, ErrNoAttempt
	}

	a.cancel()
	select {
	case <-a.done:
	case <-ctx.Done():
		return Attempt{}, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !a.started {
		return Attempt{}, ErrNoAttempt
	}
	return a.Attempt, nil
}

// Latest returns the most recent attempt that obtained a device code
func (t *Tracker) Latest() (Attempt, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return Attempt{}, false
	}
	return t.latest.Attempt, true
}

// Wait blocks until no attempt is in flight or ctx is done
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	a := t.current
	t.mu.Unlock()
	if a == nil {
		return nil
	}
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
