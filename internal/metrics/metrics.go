package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	sessionStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duet",
			Subsystem: "session",
			Name:      "starts_total",
			Help:      "Number of session spawns per slot.",
		}, []string{"slot"},
	)
	sessionStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duet",
			Subsystem: "session",
			Name:      "stops_total",
			Help:      "Number of explicit session stops per slot.",
		}, []string{"slot"},
	)
	sessionCrashes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duet",
			Subsystem: "session",
			Name:      "crashes_total",
			Help:      "Number of host-reported session closes handled as crashes.",
		}, []string{"slot"},
	)
	restartAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duet",
			Subsystem: "session",
			Name:      "restart_attempts_total",
			Help:      "Number of automatic restart attempts per slot.",
		}, []string{"slot"},
	)
	restartBudgetExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duet",
			Subsystem: "session",
			Name:      "restart_budget_exhausted_total",
			Help:      "Times the crash budget ran out and restarts were suspended.",
		}, []string{"slot"},
	)
	healthState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "duet",
			Subsystem: "health",
			Name:      "state",
			Help:      "Current health state per slot (1 = active state, 0 = inactive).",
		}, []string{"slot", "state"},
	)
	probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "duet",
			Subsystem: "health",
			Name:      "probe_duration_seconds",
			Help:      "Duration of HTTP health probes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"slot"},
	)
)

// Register registers all collectors with r. Safe to call multiple times;
// calls after the first success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		sessionStarts, sessionStops, sessionCrashes,
		restartAttempts, restartBudgetExhausted,
		healthState, probeDuration,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

func IncStart(slot string)           { sessionStarts.WithLabelValues(slot).Inc() }
func IncStop(slot string)            { sessionStops.WithLabelValues(slot).Inc() }
func IncCrash(slot string)           { sessionCrashes.WithLabelValues(slot).Inc() }
func IncRestartAttempt(slot string)  { restartAttempts.WithLabelValues(slot).Inc() }
func IncBudgetExhausted(slot string) { restartBudgetExhausted.WithLabelValues(slot).Inc() }

// SetHealthState flips the state gauge so exactly one state is 1 per slot.
func SetHealthState(slot, state string) {
	for _, s := range []string{"none", "starting", "running", "crashed"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		healthState.WithLabelValues(slot, s).Set(v)
	}
}

func ObserveProbeDuration(slot string, seconds float64) {
	probeDuration.WithLabelValues(slot).Observe(seconds)
}
