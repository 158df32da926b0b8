// Package metrics exposes pipeline counters and gauges in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reeler/internal/progress"
)

// Metrics holds the Prometheus collectors for one reeler process.
type Metrics struct {
	registry          *prometheus.Registry
	processAttempts   *prometheus.CounterVec
	tasksInFlight     *prometheus.GaugeVec
	stageEvents       *prometheus.CounterVec
	episodesCompleted prometheus.Counter
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	processAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reeler_process_attempts_total",
		Help: "External process attempts by command and outcome",
	}, []string{"command", "outcome"})
	tasksInFlight := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reeler_tasks_in_flight",
		Help: "Tasks currently running in each stage pool",
	}, []string{"stage"})
	stageEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reeler_stage_events_total",
		Help: "Lifecycle events published by each stage",
	}, []string{"stage", "kind"})
	episodesCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reeler_episodes_completed_total",
		Help: "Episodes encoded successfully",
	})
	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reeler_http_requests_total",
		Help: "Total number of status server requests",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reeler_http_errors_total",
		Help: "Status server responses with an error status (4xx or 5xx)",
	})

	registry.MustRegister(
		processAttempts,
		tasksInFlight,
		stageEvents,
		episodesCompleted,
		requestsTotal,
		errorsTotal,
	)

	return &Metrics{
		registry:          registry,
		processAttempts:   processAttempts,
		tasksInFlight:     tasksInFlight,
		stageEvents:       stageEvents,
		episodesCompleted: episodesCompleted,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
	}
}

// ObserveAttempt counts one external process attempt.
func (m *Metrics) ObserveAttempt(command string, _ int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.processAttempts.WithLabelValues(command, outcome).Inc()
}

// PoolObserver returns a callback that tracks the in-flight count of stage.
func (m *Metrics) PoolObserver(stage progress.Stage) func(int) {
	gauge := m.tasksInFlight.WithLabelValues(string(stage))
	return func(inFlight int) {
		gauge.Set(float64(inFlight))
	}
}

// Publish counts lifecycle events. Progress updates are ignored.
func (m *Metrics) Publish(e progress.Event) {
	if e.Kind == progress.Progressed {
		return
	}
	m.stageEvents.WithLabelValues(string(e.Stage), string(e.Kind)).Inc()
	if e.Stage == progress.StageEncode && e.Kind == progress.Completed {
		m.episodesCompleted.Inc()
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
