package deviceflow

import (
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"
)

const (
	// InitialJitterMax bounds the random delay before the first poll
	InitialJitterMax = 2 * time.Second

	// Token persistence defaults
	defaultSettleDelay     = 100 * time.Millisecond
	defaultPersistAttempts = 5
	defaultPersistBackoff  = 500 * time.Millisecond
)

type settings struct {
	clock           clock.Clock
	sleep           SleepFunc
	jitter          JitterFunc
	observer        Observer
	settleDelay     time.Duration
	persistAttempts int
	persistBackoff  time.Duration
	newAttemptID    func() string
}

func newSettings(opts []Option) settings {
	s := settings{
		clock:           clock.RealClock{},
		jitter:          randomJitter,
		observer:        nopObserver{},
		settleDelay:     defaultSettleDelay,
		persistAttempts: defaultPersistAttempts,
		persistBackoff:  defaultPersistBackoff,
		newAttemptID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.sleep == nil {
		s.sleep = sleeper(s.clock)
	}
	if s.persistAttempts < 1 {
		s.persistAttempts = 1
	}
	return s
}

// Option configures the device flow components
type Option func(*settings)

// WithClock sets the clock used for timeouts and delays
func WithClock(c clock.Clock) Option {
	return func(s *settings) {
		s.clock = c
	}
}

// WithJitter sets the source of random delays added to poll intervals
func WithJitter(j JitterFunc) Option {
	return func(s *settings) {
		if j != nil {
			s.jitter = j
		}
	}
}

// WithObserver sets the observer receiving attempt events
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithSettleDelay sets the wait between a token write and its read-back
func WithSettleDelay(d time.Duration) Option {
	return func(s *settings) {
		s.settleDelay = d
	}
}

// WithPersistRetry sets the number of write-verify attempts and the
// per-attempt backoff step between them
func WithPersistRetry(attempts int, backoff time.Duration) Option {
	return func(s *settings) {
		s.persistAttempts = attempts
		s.persistBackoff = backoff
	}
}
