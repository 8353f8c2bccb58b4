package risk

import "context"

// SignalProvider produces one Signal for an attempt.
//
// Applicable must be false when the provider's required input is absent; the
// aggregator then skips the provider instead of recording a degraded signal.
// Evaluate returns an error for lookup or network failures and must honour ctx
// cancellation. The baseline is nil for an identity that has never been allowed.
type SignalProvider interface {
	Name() string
	Applicable(attempt *Attempt) bool
	Evaluate(ctx context.Context, attempt *Attempt, baseline *Baseline) (Signal, error)
}

// Clamp01 bounds v to [0,1]
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
