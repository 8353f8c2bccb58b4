// Package metrics holds the Prometheus collectors for the risk engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "login_risk"

var (
	// ProviderLatency observes how long each signal provider took, degraded or not.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Signal provider evaluation latency in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"provider"},
	)

	// ProviderDegradedTotal counts degraded signals by provider and reason.
	ProviderDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_degraded_total",
			Help:      "Signals replaced by the degraded default, by provider and reason.",
		},
		[]string{"provider", "reason"},
	)

	// DecisionsTotal counts rendered decisions.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Risk decisions by decision and override reason.",
		},
		[]string{"decision", "override"},
	)

	// AssessmentDuration observes end-to-end aggregation time.
	AssessmentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_duration_seconds",
			Help:      "Time spent aggregating signals for one attempt.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// OutcomesTotal counts OTP outcomes recorded against challenged attempts.
	OutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_outcomes_total",
			Help:      "Final outcomes recorded for CHALLENGE_OTP attempts.",
		},
		[]string{"outcome"},
	)

	// SideEffectFailuresTotal counts ledger, baseline and publish failures after a decision.
	SideEffectFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Post-decision side effects that failed.",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		ProviderLatency,
		ProviderDegradedTotal,
		DecisionsTotal,
		AssessmentDuration,
		OutcomesTotal,
		SideEffectFailuresTotal,
	)
}
