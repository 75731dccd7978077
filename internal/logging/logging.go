// Package logging configures zap and logs device flow events
package logging

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

// New creates the process logger. Debug selects the development encoder.
func New(debug bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("setting up logger: %w", err)
	}
	return logger, nil
}

// Observer logs device flow events. Device codes and access tokens are
// never logged.
type Observer struct {
	log *zap.Logger
}

var _ deviceflow.Observer = (*Observer)(nil)

// NewObserver returns an Observer writing to log
func NewObserver(log *zap.Logger) *Observer {
	return &Observer{log: log.Named("deviceflow")}
}

// Observe implements deviceflow.Observer
func (o *Observer) Observe(e deviceflow.Event) {
	fields := []zap.Field{
		zap.String("attempt", e.Attempt),
		zap.String("user_code", e.UserCode),
	}

	switch e.Kind {
	case deviceflow.EventStarted:
		o.log.Info("Polling for device token", fields...)

	case deviceflow.EventPoll:
		o.log.Debug("Token not yet issued",
			append(fields,
				zap.Stringer("category", e.Category),
				zap.Duration("delay", e.Delay),
				zap.Duration("interval", e.State.PollingInterval),
				zap.Int("slow_downs", e.State.SlowDownCount),
				zap.Int("network_errors", e.State.ConsecutiveNetworkErrors),
				zap.Int("unknown_errors", e.State.ConsecutiveUnknownErrors),
				zap.Error(e.Err),
			)...)

	case deviceflow.EventPersistRetry:
		o.log.Warn("Token write not verified",
			append(fields,
				zap.Int("persist_attempt", e.PersistAttempt),
				zap.Error(e.Err),
			)...)

	case deviceflow.EventFinished:
		fields = append(fields,
			zap.Stringer("outcome", e.Outcome.Kind),
			zap.String("guidance", string(e.Outcome.Guidance())),
		)
		if e.Outcome.Succeeded() {
			o.log.Info("Authentication finished", fields...)
			return
		}
		o.log.Warn("Authentication finished", append(fields, zap.Error(e.Outcome.Cause))...)
	}
}
