// Package metrics holds the Prometheus collectors for grading and side effects.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	evaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edu_vault_evaluations_total",
			Help: "Total number of performance evaluations",
		},
		[]string{"mode", "passed"},
	)

	modeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edu_vault_mode_transitions_total",
			Help: "Learning mode transitions decided by grading",
		},
		[]string{"from", "to"},
	)

	gradingShortCircuits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edu_vault_grading_short_circuits_total",
			Help: "Gradings answered without dispatch because grading mode was already set",
		},
	)

	sideEffectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edu_vault_side_effect_duration_seconds",
			Help:    "Time spent in each evaluation observer",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"observer"},
	)

	sideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edu_vault_side_effect_failures_total",
			Help: "Evaluation observer failures",
		},
		[]string{"observer"},
	)

	attemptSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edu_vault_attempt_submissions_total",
			Help: "Question attempt submissions by outcome",
		},
		[]string{"outcome"},
	)
)

func RecordEvaluation(mode string, passed bool) {
	evaluations.WithLabelValues(mode, strconv.FormatBool(passed)).Inc()
}

func RecordTransition(from, to string) {
	modeTransitions.WithLabelValues(from, to).Inc()
}

func RecordShortCircuit() {
	gradingShortCircuits.Inc()
}

func ObserveSideEffect(observer string, d time.Duration, err error) {
	sideEffectDuration.WithLabelValues(observer).Observe(d.Seconds())
	if err != nil {
		sideEffectFailures.WithLabelValues(observer).Inc()
	}
}

func RecordAttempt(outcome string) {
	attemptSubmissions.WithLabelValues(outcome).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
