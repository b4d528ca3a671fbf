// Package metrics exposes the add-on's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

// Metrics implements the recorder ports of wake, pipeline and scheduler.
type Metrics struct {
	registry *prometheus.Registry

	wakeAttempts     *prometheus.CounterVec
	wakeDuration     *prometheus.HistogramVec
	pipelineRuns     *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	triggersReplaced prometheus.Counter
	presenceEvents   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		wakeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bloomin_wake_attempts_total",
			Help: "Wake attempts by channel and result.",
		}, []string{"channel", "result"}),
		wakeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bloomin_wake_attempt_duration_seconds",
			Help:    "Duration of single wake channel attempts.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
		}, []string{"channel"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bloomin_pipeline_runs_total",
			Help: "Finished pipeline runs by outcome.",
		}, []string{"outcome"}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bloomin_pipeline_duration_seconds",
			Help:    "End-to-end pipeline run duration.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		triggersReplaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bloomin_triggers_replaced_total",
			Help: "Pending presence triggers replaced by a newer one.",
		}),
		presenceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bloomin_presence_events_total",
			Help: "Presence changes received, by new state.",
		}, []string{"state"}),
	}
	m.registry.MustRegister(
		m.wakeAttempts,
		m.wakeDuration,
		m.pipelineRuns,
		m.pipelineDuration,
		m.triggersReplaced,
		m.presenceEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveWakeAttempt(channel frame.Channel, ok bool, elapsed time.Duration) {
	result := "failure"
	if ok {
		result = "success"
	}
	m.wakeAttempts.WithLabelValues(string(channel), result).Inc()
	m.wakeDuration.WithLabelValues(string(channel)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePipelineRun(outcome string, elapsed time.Duration) {
	m.pipelineRuns.WithLabelValues(outcome).Inc()
	m.pipelineDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncTriggerReplaced() {
	m.triggersReplaced.Inc()
}

func (m *Metrics) IncPresenceEvent(state frame.PresenceState) {
	m.presenceEvents.WithLabelValues(state.String()).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
