package providers

import (
	"github.com/shopspring/decimal"

	"login-risk-engine/internal/domain/risk"
)

// ladder sums additive risk terms in decimal so 0.4 + 0.2 is exactly 0.6
type ladder struct {
	sum decimal.Decimal
}

func (l *ladder) add(term float64) {
	l.sum = l.sum.Add(decimal.NewFromFloat(term))
}

// score returns the total clamped to [0,1]
func (l *ladder) score() float64 {
	f, _ := l.sum.Float64()
	return risk.Clamp01(f)
}
