package deviceflow

import (
	"math/rand/v2"
	"time"
)

const (
	// MinPollInterval is the floor applied to the provider-issued interval per RFC 8628 section 3.5
	MinPollInterval = 5 * time.Second

	// SlowDownStep is added to the polling interval on every slow_down per RFC 8628 section 3.5
	SlowDownStep = 5 * time.Second

	maxSlowDowns     = 10
	maxNetworkErrors = 8
	maxUnknownErrors = 5

	pendingJitter  = time.Second
	slowDownJitter = 3 * time.Second

	networkBackoffCap   = 30 * time.Second
	unknownBackoffCap   = 20 * time.Second
	transportBackoffCap = 15 * time.Second
)

// PollRunState is the mutable state of one polling attempt
type PollRunState struct {
	StartedAt                time.Time
	PollingInterval          time.Duration
	ConsecutiveNetworkErrors int
	ConsecutiveUnknownErrors int
	SlowDownCount            int
}

// NewPollRunState creates the state for an attempt starting at now
func NewPollRunState(start DeviceStart, now time.Time) PollRunState {
	interval := time.Duration(start.IntervalSec) * time.Second
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	return PollRunState{
		StartedAt:       now,
		PollingInterval: interval,
	}
}

// Decision is the Backoff verdict for one classified poll result.
// When Terminal is set, Outcome names the terminal state and Delay is zero.
type Decision struct {
	Delay    time.Duration
	State    PollRunState
	Terminal bool
	Outcome  OutcomeKind
}

// JitterFunc returns a random duration in [0, max]
type JitterFunc func(max time.Duration) time.Duration

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max) + 1))
}

// Backoff decides the delay before the next poll
type Backoff struct {
	jitter JitterFunc
}

// NewBackoff creates a Backoff using jitter for randomized delays.
// A nil jitter uses a uniform random source.
func NewBackoff(jitter JitterFunc) Backoff {
	if jitter == nil {
		jitter = randomJitter
	}
	return Backoff{jitter: jitter}
}

// Next applies the rules for category c to st. transport marks a failure that
// did not come from a provider response; it only changes the Unknown rule.
func (b Backoff) Next(c Category, transport bool, st PollRunState) Decision {
	switch c {
	case CategoryAuthorizationPending:
		st.ConsecutiveNetworkErrors = 0
		st.ConsecutiveUnknownErrors = 0
		if st.SlowDownCount > 0 {
			st.SlowDownCount--
		}
		return Decision{Delay: st.PollingInterval + b.jitter(pendingJitter), State: st}

	case CategorySlowDown:
		st.ConsecutiveNetworkErrors = 0
		st.ConsecutiveUnknownErrors = 0
		st.SlowDownCount++
		st.PollingInterval += SlowDownStep
		if st.SlowDownCount > maxSlowDowns {
			return terminal(OutcomeRateLimited, st)
		}
		return Decision{Delay: st.PollingInterval + b.jitter(slowDownJitter), State: st}

	case CategoryAccessDenied:
		return terminal(OutcomeDenied, st)

	case CategoryExpired:
		return terminal(OutcomeExpired, st)

	case CategoryInvalidCode:
		return terminal(OutcomeInvalidCode, st)

	case CategoryNetworkError:
		st.ConsecutiveUnknownErrors = 0
		st.ConsecutiveNetworkErrors++
		if st.ConsecutiveNetworkErrors >= maxNetworkErrors {
			return terminal(OutcomeNetworkFailure, st)
		}
		delay := st.PollingInterval * time.Duration(1+st.ConsecutiveNetworkErrors)
		return Decision{Delay: min(delay, networkBackoffCap), State: st}
	}

	st.ConsecutiveUnknownErrors++
	if st.ConsecutiveUnknownErrors >= maxUnknownErrors {
		return terminal(OutcomeUnknownFailure, st)
	}
	if transport {
		return Decision{Delay: min(st.PollingInterval*2, transportBackoffCap), State: st}
	}
	delay := st.PollingInterval * time.Duration(1+st.ConsecutiveUnknownErrors/2)
	return Decision{Delay: min(delay, unknownBackoffCap), State: st}
}

func terminal(k OutcomeKind, st PollRunState) Decision {
	return Decision{State: st, Terminal: true, Outcome: k}
}
