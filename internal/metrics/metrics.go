// Package metrics exposes Prometheus collectors for speech sessions.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ttsbridge"

var (
	// TasksSubmitted counts tasks offered to the queue by kind and outcome
	// (accepted, rejected).
	TasksSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks submitted",
		},
		[]string{"kind", "outcome"},
	)

	// TasksDropped counts queued tasks replaced before they started.
	TasksDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_dropped_total",
			Help:      "Total number of pending tasks replaced by a newer one",
		},
		[]string{"kind"},
	)

	// TaskResults counts finished tasks by kind and result code.
	TaskResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_results_total",
			Help:      "Total number of finished tasks by result",
		},
		[]string{"kind", "result"},
	)

	// TaskDuration is a histogram of task execution time.
	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Histogram of task execution duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	// EngineInits counts initialization attempts by outcome.
	EngineInits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_inits_total",
			Help:      "Total number of engine initializations by outcome",
		},
		[]string{"outcome"},
	)

	// EngineState is the numeric engine state of the most recently
	// transitioned session.
	EngineState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_state",
			Help:      "Engine state (0 uninitialized, 1 initializing, 2 ready, 3 failed)",
		},
	)

	// FocusLosses counts involuntary audio focus losses by kind.
	FocusLosses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "focus_losses_total",
			Help:      "Total number of audio focus losses",
		},
		[]string{"kind"},
	)

	// StopRequests counts StopTask calls by whether the engine stop succeeded.
	StopRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stop_requests_total",
			Help:      "Total number of stop requests",
		},
		[]string{"ok"},
	)
)

// Collectors returns every collector in this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		TasksSubmitted,
		TasksDropped,
		TaskResults,
		TaskDuration,
		EngineInits,
		EngineState,
		FocusLosses,
		StopRequests,
	}
}

// Register adds the collectors to reg. Collectors that are already
// registered are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
