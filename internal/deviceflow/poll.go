package deviceflow

import (
	"context"
	"errors"
	"time"

	"k8s.io/utils/clock"
)

// Poller drives the device access token polling loop per RFC 8628 section 3.4
// until a terminal Outcome is reached
type Poller struct {
	provider     Provider
	persistor    *Persistor
	backoff      Backoff
	clock        clock.PassiveClock
	sleep        SleepFunc
	jitter       JitterFunc
	observer     Observer
	newAttemptID func() string
}

// NewPoller creates a poller that persists issued tokens to store
func NewPoller(provider Provider, store TokenStore, opts ...Option) *Poller {
	return newPoller(provider, store, newSettings(opts))
}

func newPoller(provider Provider, store TokenStore, s settings) *Poller {
	return &Poller{
		provider:     provider,
		persistor:    newPersistor(store, s),
		backoff:      NewBackoff(s.jitter),
		clock:        s.clock,
		sleep:        s.sleep,
		jitter:       s.jitter,
		observer:     s.observer,
		newAttemptID: s.newAttemptID,
	}
}

// Await polls the provider for the token of start. Polls are strictly
// sequential. Cancelling ctx yields OutcomeCancelled whichever wait it
// interrupts, and takes precedence over a token arriving at the same time.
func (p *Poller) Await(ctx context.Context, clientID string, start DeviceStart) Outcome {
	attempt := p.newAttemptID()
	outcome := p.run(ctx, attempt, clientID, start)
	redacted := outcome
	redacted.Token = nil
	p.observer.Observe(Event{
		Kind:     EventFinished,
		Attempt:  attempt,
		UserCode: start.UserCode,
		Outcome:  redacted,
	})
	return outcome
}

func (p *Poller) run(ctx context.Context, attempt, clientID string, start DeviceStart) Outcome {
	st := NewPollRunState(start, p.clock.Now())
	timeout := start.Lifetime()

	// Desynchronize clients started at the same instant
	if err := p.sleep(ctx, p.jitter(InitialJitterMax-time.Nanosecond)); err != nil {
		return cancelled(err)
	}

	p.observer.Observe(Event{
		Kind:     EventStarted,
		Attempt:  attempt,
		UserCode: start.UserCode,
		State:    st,
	})

	for {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		if p.clock.Since(st.StartedAt) >= timeout {
			return timedOut(start)
		}

		token, err := p.provider.PollDeviceToken(ctx, clientID, start.DeviceCode)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(ctxErr)
		}
		if err == nil && token == nil {
			err = &ProviderError{Code: "invalid_response", Description: "empty token response"}
		}
		if err == nil {
			return p.complete(ctx, attempt, *token)
		}

		category, transport := classifyPollError(err)
		decision := p.backoff.Next(category, transport, st)
		st = decision.State
		if decision.Terminal {
			return failure(decision.Outcome, err)
		}

		p.observer.Observe(Event{
			Kind:     EventPoll,
			Attempt:  attempt,
			UserCode: start.UserCode,
			Category: category,
			Delay:    decision.Delay,
			State:    st,
			Err:      err,
		})

		if err := p.sleep(ctx, decision.Delay); err != nil {
			return cancelled(err)
		}
	}
}

func (p *Poller) complete(ctx context.Context, attempt string, token DeviceTokenSuccess) Outcome {
	if err := p.persistor.persist(ctx, attempt, token); err != nil {
		if ctx.Err() != nil {
			return cancelled(err)
		}
		return failure(OutcomePersistenceFailure, err)
	}
	return success(token)
}

// classifyPollError reports the category of err and whether it came from the
// transport rather than a provider response
func classifyPollError(err error) (Category, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return Classify(perr.Error()), false
	}
	return Classify(err.Error()), true
}
