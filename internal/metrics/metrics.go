// Package metrics exposes Prometheus collectors for mode transitions,
// migration passes and deferred writes.
//
// A nil *Recorder is valid and records nothing, so components take one
// without caring whether metrics are enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transition results.
const (
	ResultSuccess = "success"
	ResultAborted = "aborted"
	ResultIgnored = "ignored"
)

// Migration outcomes per record.
const (
	OutcomeCreated   = "created"
	OutcomeMerged    = "merged"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

// Deferred task outcomes.
const (
	TaskQueued   = "queued"
	TaskReplayed = "replayed"
	TaskFailed   = "failed"
)

// Recorder holds the kindred collectors.
type Recorder struct {
	transitions *prometheus.CounterVec
	migrated    *prometheus.CounterVec
	deferred    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	remote      prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests
// to keep them isolated from the default registry.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kindred_mode_transitions_total",
			Help: "Mode transitions by direction and result",
		}, []string{"direction", "result"}),
		migrated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kindred_migrated_records_total",
			Help: "Records visited by migration passes, by kind and outcome",
		}, []string{"kind", "outcome"}),
		deferred: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kindred_deferred_tasks_total",
			Help: "Writes deferred during transitions, by outcome",
		}, []string{"outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kindred_transition_duration_seconds",
			Help:    "Time from transition start to hand-off or abort",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"direction"}),
		remote: f.NewGauge(prometheus.GaugeOpts{
			Name: "kindred_remote_mode",
			Help: "1 while the remote-synced store is active, 0 while local",
		}),
	}
}

// Transition counts one finished or ignored transition request.
func (r *Recorder) Transition(direction, result string, seconds float64) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(direction, result).Inc()
	if result != ResultIgnored {
		r.duration.WithLabelValues(direction).Observe(seconds)
	}
}

// Migrated adds n records of kind with the given outcome.
func (r *Recorder) Migrated(kind, outcome string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.migrated.WithLabelValues(kind, outcome).Add(float64(n))
}

// Deferred counts one deferred task event.
func (r *Recorder) Deferred(outcome string) {
	if r == nil {
		return
	}
	r.deferred.WithLabelValues(outcome).Inc()
}

// SetRemote records which store is active.
func (r *Recorder) SetRemote(remote bool) {
	if r == nil {
		return
	}
	if remote {
		r.remote.Set(1)
	} else {
		r.remote.Set(0)
	}
}
