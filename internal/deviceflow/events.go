package deviceflow

import "time"

// EventKind identifies an Event emitted during an attempt
type EventKind int

const (
	// EventStarted is emitted once polling begins, after the initial jitter
	EventStarted EventKind = iota
	// EventPoll is emitted for every classified poll failure that does not end the attempt
	EventPoll
	// EventPersistRetry is emitted when a write could not be verified
	EventPersistRetry
	// EventFinished is emitted with the terminal outcome
	EventFinished
)

// Event describes a step of an authentication attempt.
// Secrets (device code, access token) are never included.
type Event struct {
	Kind     EventKind
	Attempt  string
	UserCode string

	Category Category
	Delay    time.Duration
	State    PollRunState
	Err      error

	PersistAttempt int
	Outcome        Outcome
}

// Observer receives events from the polling engine and the persistor
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans events out to every non-nil observer
func Observers(observers ...Observer) Observer {
	return multiObserver(observers)
}

type multiObserver []Observer

func (m multiObserver) Observe(e Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(e)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Observe(Event) {}
