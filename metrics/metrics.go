// Package metrics exposes scheduling activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/injoimydesign/flag-community/schedule"
)

// Recorder implements schedule.Recorder on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	generated   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	reminders   prometheus.Counter
	duration    prometheus.Histogram
}

var _ schedule.Recorder = (*Recorder)(nil)

// New registers the scheduler metrics plus Go runtime and process
// collectors on a fresh registry.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		generated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "placements_generated_total",
				Help: "Placements created by the planner",
			},
			[]string{"holiday"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "placement_generation_failures_total",
				Help: "Candidate placements the planner failed to persist",
			},
			[]string{"holiday"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "placement_transitions_total",
				Help: "Placement state machine actions by outcome",
			},
			[]string{"action", "result"},
		),
		reminders: factory.NewCounter(prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Placement reminders delivered to customers",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "placement_generation_duration_seconds",
			Help:    "Time to generate placements for one subscription",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

func (r *Recorder) PlacementGenerated(holidayID schedule.HolidayID) {
	r.generated.WithLabelValues(string(holidayID)).Inc()
}

func (r *Recorder) GenerationFailed(holidayID schedule.HolidayID) {
	r.failures.WithLabelValues(string(holidayID)).Inc()
}

func (r *Recorder) GenerationCompleted(d time.Duration) {
	r.duration.Observe(d.Seconds())
}

func (r *Recorder) Transition(action schedule.ActionKind, ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	r.transitions.WithLabelValues(string(action), result).Inc()
}

func (r *Recorder) ReminderSent() {
	r.reminders.Inc()
}

// Registry is exposed for tests and for registering extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
