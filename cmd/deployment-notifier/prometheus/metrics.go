package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// MetricsInterface defines the interface for the metrics service. This is required
// for dependency injection and mocking in tests.
type MetricsInterface interface {
	AddProcessedMessage(classification string)
	AddParseFailure()
	AddDeleteFailure()
	AddWatchOutcome(outcome string)
	AddInProgressWatch()
	RemoveInProgressWatch()
}

// Metrics contains all the prometheus collectors.
type Metrics struct {
	ProcessedMessages *prometheus.CounterVec
	ParseFailures     prometheus.Counter
	DeleteFailures    prometheus.Counter
	WatchOutcomes     *prometheus.CounterVec
	InProgressWatches prometheus.Gauge
}

// NewMetrics creates and registers the metrics with the provided Registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProcessedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "processed_messages_total",
			Help: "Stack event messages consumed, by classification.",
		}, []string{"classification"}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parse_failures_total",
			Help: "Messages left on the queue because they could not be parsed.",
		}),
		DeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delete_failures_total",
			Help: "Consumed messages that could not be deleted from the queue.",
		}),
		WatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watch_outcomes_total",
			Help: "Finished watches by outcome.",
		}, []string{"outcome"}),
		InProgressWatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "in_progress_watches",
			Help: "The number of watches currently polling.",
		}),
	}

	reg.MustRegister(m.ProcessedMessages, m.ParseFailures, m.DeleteFailures, m.WatchOutcomes, m.InProgressWatches)

	return m
}

// AddProcessedMessage increments the ProcessedMessages counter for the given classification.
func (m *Metrics) AddProcessedMessage(classification string) {
	m.ProcessedMessages.WithLabelValues(classification).Inc()
}

// AddParseFailure increments the ParseFailures counter.
func (m *Metrics) AddParseFailure() {
	m.ParseFailures.Inc()
}

// AddDeleteFailure increments the DeleteFailures counter.
func (m *Metrics) AddDeleteFailure() {
	m.DeleteFailures.Inc()
}

// AddWatchOutcome increments the WatchOutcomes counter for the given outcome.
func (m *Metrics) AddWatchOutcome(outcome string) {
	m.WatchOutcomes.WithLabelValues(outcome).Inc()
}

// AddInProgressWatch increments the InProgressWatches gauge.
func (m *Metrics) AddInProgressWatch() {
	m.InProgressWatches.Inc()
}

// RemoveInProgressWatch decrements the InProgressWatches gauge.
func (m *Metrics) RemoveInProgressWatch() {
	m.InProgressWatches.Dec()
}

// Push sends the collectors to a Pushgateway. The process is a short-lived job, so nothing scrapes it.
func (m *Metrics) Push(url, job, stackName string) error {
	return push.New(url, job).
		Grouping("stack", stackName).
		Collector(m.ProcessedMessages).
		Collector(m.ParseFailures).
		Collector(m.DeleteFailures).
		Collector(m.WatchOutcomes).
		Collector(m.InProgressWatches).
		Push()
}
