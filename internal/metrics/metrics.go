// Package metrics exposes the alarm clock counters to Prometheus.
//
// Components depend on the Recorder interface; Noop is used when metrics are
// disabled in the configuration.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives scheduling and delivery events worth counting.
type Recorder interface {
	// TriggerRegistered counts a wakeup registered with the host timer.
	TriggerRegistered(kind string)
	// TriggerDeduplicated counts a schedule request skipped because a trigger was pending.
	TriggerDeduplicated()
	// AttemptGraded counts a graded SayIt attempt by outcome.
	AttemptGraded(outcome string)
	// SessionFinished counts a delivery session by its terminal state.
	SessionFinished(state string)
}

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	triggersRegistered   *prometheus.CounterVec
	triggersDeduplicated prometheus.Counter
	attemptsGraded       *prometheus.CounterVec
	sessionsFinished     *prometheus.CounterVec
	gatherer             prometheus.Gatherer
}

// NewPrometheus creates collectors and registers them in a dedicated registry.
func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()

	p := &Prometheus{
		triggersRegistered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alarm_clock_triggers_registered_total",
			Help: "Wakeups registered with the host timer",
		}, []string{"kind"}),
		triggersDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alarm_clock_triggers_deduplicated_total",
			Help: "Schedule requests skipped because a wakeup was already pending",
		}),
		attemptsGraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alarm_clock_sayit_attempts_total",
			Help: "Spoken attempts graded by the SayIt challenge",
		}, []string{"outcome"}),
		sessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alarm_clock_delivery_sessions_total",
			Help: "Delivery sessions by terminal state",
		}, []string{"state"}),
		gatherer: registry,
	}

	registry.MustRegister(
		p.triggersRegistered,
		p.triggersDeduplicated,
		p.attemptsGraded,
		p.sessionsFinished,
	)

	return p
}

// TriggerRegistered implements Recorder.
func (p *Prometheus) TriggerRegistered(kind string) {
	p.triggersRegistered.WithLabelValues(kind).Inc()
}

// TriggerDeduplicated implements Recorder.
func (p *Prometheus) TriggerDeduplicated() {
	p.triggersDeduplicated.Inc()
}

// AttemptGraded implements Recorder.
func (p *Prometheus) AttemptGraded(outcome string) {
	p.attemptsGraded.WithLabelValues(outcome).Inc()
}

// SessionFinished implements Recorder.
func (p *Prometheus) SessionFinished(state string) {
	p.sessionsFinished.WithLabelValues(state).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// Noop discards every event.
type Noop struct{}

// TriggerRegistered implements Recorder.
func (Noop) TriggerRegistered(string) {}

// TriggerDeduplicated implements Recorder.
func (Noop) TriggerDeduplicated() {}

// AttemptGraded implements Recorder.
func (Noop) AttemptGraded(string) {}

// SessionFinished implements Recorder.
func (Noop) SessionFinished(string) {}
