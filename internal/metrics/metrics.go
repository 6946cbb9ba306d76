// Package metrics exposes the pipeline's Prometheus instrumentation:
// queue depth, provider latency/error rates, and per-channel
// reputation gauges.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the pipeline emits.
type Registry struct {
	QueueDepth   prometheus.Gauge
	QueueDropped prometheus.Counter

	ProviderLatency *prometheus.HistogramVec
	ProviderErrors  *prometheus.CounterVec

	MessagesAdmitted *prometheus.CounterVec
	MessagesFiltered *prometheus.CounterVec

	ChannelReputation *prometheus.GaugeVec
	OutcomesActive    prometheus.Gauge
	OutcomesCompleted *prometheus.CounterVec

	SchedulerCycles *prometheus.CounterVec

	// ProviderCalls and StageLatency are synchronous in-process
	// accumulators for the health/report surfaces; they are not
	// prometheus.Collectors and are never passed to MustRegister.
	ProviderCalls *ProviderCallTracker
	StageLatency  *StageLatencyTracker
}

// NewRegistry builds every pipeline metric and registers it with the
// default Prometheus registry.
func NewRegistry() *Registry {
	r := newUnregistered()
	prometheus.MustRegister(
		r.QueueDepth,
		r.QueueDropped,
		r.ProviderLatency,
		r.ProviderErrors,
		r.MessagesAdmitted,
		r.MessagesFiltered,
		r.ChannelReputation,
		r.OutcomesActive,
		r.OutcomesCompleted,
		r.SchedulerCycles,
	)
	return r
}

// NewUnregistered builds every metric object without registering it
// with the default Prometheus registry, so tests and standalone
// components can construct an independent Registry without colliding
// on shared collector names.
func NewUnregistered() *Registry {
	return newUnregistered()
}

// newUnregistered builds the metric objects without registering them,
// so tests can construct independent instances without colliding on
// the shared default registry.
func newUnregistered() *Registry {
	r := &Registry{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chainsignal_queue_depth",
			Help: "Current number of messages waiting in the priority queue",
		}),
		QueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chainsignal_queue_dropped_total",
			Help: "Total messages dropped because the priority queue was full",
		}),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chainsignal_provider_latency_seconds",
				Help:    "Price provider call latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"provider", "result"},
		),
		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainsignal_provider_errors_total",
				Help: "Total provider call errors by provider and error type",
			},
			[]string{"provider", "error_type"},
		),
		MessagesAdmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainsignal_messages_admitted_total",
				Help: "Total chat messages admitted into signal tracking",
			},
			[]string{"channel"},
		),
		MessagesFiltered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainsignal_messages_filtered_total",
				Help: "Total chat messages rejected by the token filter",
			},
			[]string{"channel", "reason"},
		),
		ChannelReputation: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chainsignal_channel_reputation_score",
				Help: "Current composite reputation score per channel",
			},
			[]string{"channel", "tier"},
		),
		OutcomesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chainsignal_outcomes_active",
			Help: "Number of signal outcomes currently being tracked",
		}),
		OutcomesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainsignal_outcomes_completed_total",
				Help: "Total signal outcomes archived by completion reason",
			},
			[]string{"reason"},
		),
		SchedulerCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainsignal_scheduler_cycles_total",
				Help: "Total scheduler cycles by outcome",
			},
			[]string{"result"},
		),
		ProviderCalls: NewProviderCallTracker(),
		StageLatency:  NewStageLatencyTracker(),
	}
	return r
}

// ProviderTimer tracks one provider call's latency.
type ProviderTimer struct {
	registry *Registry
	provider string
	start    time.Time
}

// StartProviderTimer begins timing a provider call.
func (r *Registry) StartProviderTimer(provider string) *ProviderTimer {
	return &ProviderTimer{registry: r, provider: provider, start: time.Now()}
}

// Stop records the observed latency under the given result label.
func (pt *ProviderTimer) Stop(result string) {
	pt.registry.ProviderLatency.WithLabelValues(pt.provider, result).Observe(time.Since(pt.start).Seconds())
}

// RecordProviderError increments the provider error counter.
func (r *Registry) RecordProviderError(provider, errorType string) {
	r.ProviderErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordMessageAdmitted increments the per-channel admission counter.
func (r *Registry) RecordMessageAdmitted(channel string) {
	r.MessagesAdmitted.WithLabelValues(channel).Inc()
}

// RecordMessageFiltered increments the per-channel, per-reason filter counter.
func (r *Registry) RecordMessageFiltered(channel, reason string) {
	r.MessagesFiltered.WithLabelValues(channel, reason).Inc()
}

// SetChannelReputation updates the reputation gauge for a channel,
// clearing any stale tier label by re-setting only the current one.
func (r *Registry) SetChannelReputation(channel, tier string, score float64) {
	r.ChannelReputation.DeletePartialMatch(prometheus.Labels{"channel": channel})
	r.ChannelReputation.WithLabelValues(channel, tier).Set(score)
}

// Handler returns the HTTP handler serving /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
