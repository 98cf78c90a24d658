// Package metrics exposes the Prometheus counters for the playback core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	progressSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "starteducation",
		Name:      "progress_saves_total",
		Help:      "Progress upserts by result",
	}, []string{"result"})

	progressCompletions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "starteducation",
		Name:      "progress_completions_total",
		Help:      "Videos that transitioned to completed",
	})

	accessDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "starteducation",
		Name:      "access_decisions_total",
		Help:      "Access gate decisions by outcome and reason",
	}, []string{"decision", "reason"})

	enrollmentRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "starteducation",
		Name:      "enrollment_repairs_total",
		Help:      "Enrollment rows created or reactivated by the access gate",
	}, []string{"result"})

	subscriptionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "starteducation",
		Name:      "subscriptions_expired_total",
		Help:      "Subscriptions moved to expired by the sweep job",
	})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "starteducation",
		Name:      "ratelimit_exceeded_total",
		Help:      "Requests rejected by the per-IP limiter",
	})
)

func RecordProgressSave(err error) {
	if err != nil {
		progressSaves.WithLabelValues("error").Inc()
		return
	}
	progressSaves.WithLabelValues("ok").Inc()
}

func RecordCompletion() {
	progressCompletions.Inc()
}

func RecordAccessDecision(allowed bool, reason string) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	accessDecisions.WithLabelValues(decision, normalizeReason(reason)).Inc()
}

func RecordEnrollmentRepair(err error) {
	if err != nil {
		enrollmentRepairs.WithLabelValues("error").Inc()
		return
	}
	enrollmentRepairs.WithLabelValues("ok").Inc()
}

func RecordSubscriptionsExpired(n int64) {
	if n > 0 {
		subscriptionsExpired.Add(float64(n))
	}
}

func RecordRateLimited() {
	rateLimited.Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func normalizeReason(reason string) string {
	switch reason {
	case "subscription", "purchase", "enrollment", "none", "not_found", "error":
		return reason
	default:
		return "unknown"
	}
}
