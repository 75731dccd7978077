package deviceflow

import (
	"context"
	"errors"
	"sync"
	"time"

	testingclock "k8s.io/utils/clock/testing"
)

// ErrStoreUnhealthy indicates the store is not available
var ErrStoreUnhealthy = errors.New("store unhealthy")

// mockStore implements TokenStore for testing
type mockStore struct {
	mu           sync.Mutex
	token        *DeviceTokenSuccess
	healthy      bool
	saveFailures int // Save calls that fail before writes succeed
	dropWrites   int // Save calls that report success without storing
	saves        int
	subs         map[chan *DeviceTokenSuccess]struct{}
}

func newMockStore() *mockStore {
	return &mockStore{
		healthy: true,
		subs:    make(map[chan *DeviceTokenSuccess]struct{}),
	}
}

func (m *mockStore) Save(ctx context.Context, token DeviceTokenSuccess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if !m.healthy {
		return ErrStoreUnhealthy
	}
	if m.saveFailures > 0 {
		m.saveFailures--
		return errors.New("disk full")
	}
	if m.dropWrites > 0 {
		m.dropWrites--
		return nil
	}
	m.token = &token
	m.notifyLocked()
	return nil
}

func (m *mockStore) Current(ctx context.Context) (*DeviceTokenSuccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		return nil, ErrStoreUnhealthy
	}
	if m.token == nil {
		return nil, nil
	}
	token := *m.token
	return &token, nil
}

func (m *mockStore) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		return ErrStoreUnhealthy
	}
	m.token = nil
	m.notifyLocked()
	return nil
}

func (m *mockStore) Subscribe(ctx context.Context) (<-chan *DeviceTokenSuccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		return nil, ErrStoreUnhealthy
	}
	ch := make(chan *DeviceTokenSuccess, 16)
	ch <- m.token
	m.subs[ch] = struct{}{}
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

func (m *mockStore) CheckHealth(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		return ErrStoreUnhealthy
	}
	return nil
}

func (m *mockStore) notifyLocked() {
	for ch := range m.subs {
		ch <- m.token
	}
}

// pollResult is one scripted provider answer
type pollResult struct {
	token *DeviceTokenSuccess
	err   error
}

func pending() pollResult {
	return pollResult{err: &ProviderError{Code: "authorization_pending"}}
}

func providerErr(code string) pollResult {
	return pollResult{err: &ProviderError{Code: code}}
}

func transportErr(msg string) pollResult {
	return pollResult{err: errors.New(msg)}
}

func issued(accessToken string) pollResult {
	return pollResult{token: &DeviceTokenSuccess{AccessToken: accessToken, TokenType: "bearer"}}
}

// mockProvider implements Provider with scripted poll results.
// The last result repeats once the script is exhausted.
type mockProvider struct {
	mu         sync.Mutex
	start      *DeviceStart
	startErr   error
	startCalls int
	results    []pollResult
	polls      int
	onPoll     func(n int)
}

func (m *mockProvider) StartDeviceFlow(ctx context.Context, clientID string) (*DeviceStart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls++
	if m.startErr != nil {
		return nil, m.startErr
	}
	return m.start, nil
}

func (m *mockProvider) PollDeviceToken(ctx context.Context, clientID, deviceCode string) (*DeviceTokenSuccess, error) {
	m.mu.Lock()
	m.polls++
	n := m.polls
	var res pollResult
	if len(m.results) > 0 {
		res = m.results[min(n, len(m.results))-1]
	}
	hook := m.onPoll
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return res.token, res.err
}

func (m *mockProvider) pollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}

// timeline replaces real waiting with a fake clock that jumps forward by
// every requested delay
type timeline struct {
	clock   *testingclock.FakeClock
	delays  []time.Duration
	onSleep func(n int, d time.Duration)
}

func newTimeline() *timeline {
	return &timeline{clock: testingclock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}
}

func (tl *timeline) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tl.delays = append(tl.delays, d)
	if tl.onSleep != nil {
		tl.onSleep(len(tl.delays), d)
	}
	tl.clock.Step(d)
	return ctx.Err()
}

// options wires the timeline in and removes randomness
func (tl *timeline) options(extra ...Option) []Option {
	opts := []Option{
		WithClock(tl.clock),
		func(s *settings) { s.sleep = tl.sleep },
		WithJitter(noJitter),
		func(s *settings) { s.newAttemptID = func() string { return "attempt-1" } },
	}
	return append(opts, extra...)
}

func noJitter(time.Duration) time.Duration { return 0 }

// eventRecorder collects observed events
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func testStart() DeviceStart {
	return DeviceStart{
		DeviceCode:      "3584d83530557fdd1f46af8289938c8ef79f9dc5",
		UserCode:        "WDJB-MJHT",
		VerificationURI: "https://github.com/login/device",
		ExpiresInSec:    900,
		IntervalSec:     5,
	}
}
