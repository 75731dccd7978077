// Package metrics exposes device flow activity as Prometheus metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

// Observer records device flow events as Prometheus metrics
type Observer struct {
	AttemptsStarted prometheus.Counter
	Polls           *prometheus.CounterVec
	PersistRetries  prometheus.Counter
	Outcomes        *prometheus.CounterVec
	PollingInterval prometheus.Gauge
}

var _ deviceflow.Observer = (*Observer)(nil)

// NewObserver creates the collectors and registers them with reg
func NewObserver(reg prometheus.Registerer) *Observer {
	o := &Observer{
		AttemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "device_flow_attempts_started_total",
			Help: "Total number of authentication attempts that started polling",
		}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "device_flow_polls_total",
			Help: "Total number of non-terminal token polls grouped by classified response",
		}, []string{"category"}),
		PersistRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "device_flow_persist_retries_total",
			Help: "Total number of token writes that could not be verified",
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "device_flow_outcomes_total",
			Help: "Total number of finished authentication attempts grouped by outcome",
		}, []string{"outcome"}),
		PollingInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "device_flow_polling_interval_seconds",
			Help: "Polling interval of the most recent poll",
		}),
	}
	reg.MustRegister(o.AttemptsStarted, o.Polls, o.PersistRetries, o.Outcomes, o.PollingInterval)
	return o
}

// Observe implements deviceflow.Observer
func (o *Observer) Observe(e deviceflow.Event) {
	switch e.Kind {
	case deviceflow.EventStarted:
		o.AttemptsStarted.Inc()
	case deviceflow.EventPoll:
		o.Polls.WithLabelValues(e.Category.String()).Inc()
		o.PollingInterval.Set(e.State.PollingInterval.Seconds())
	case deviceflow.EventPersistRetry:
		o.PersistRetries.Inc()
	case deviceflow.EventFinished:
		o.Outcomes.WithLabelValues(e.Outcome.Kind.String()).Inc()
	}
}
