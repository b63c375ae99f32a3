// Package metrics holds the process-wide prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Dispatches counts full gate-open dispatches by final outcome.
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatebot_dispatches_total",
			Help: "Gate-open dispatches by final outcome.",
		},
		[]string{"outcome"},
	)

	// CallAttempts counts individual provider attempts.
	CallAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatebot_call_attempts_total",
			Help: "Provider call attempts by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// Verifications counts phone verification results.
	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatebot_verifications_total",
			Help: "Phone verifications by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(Dispatches, CallAttempts, Verifications)
}

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

func Outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
