package risk

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CompositeScore combines signals as sum(w*s*c) / sum(w*c).
//
// Terms are accumulated in decimal over provider names in sorted order, so the
// result does not depend on map iteration or provider completion order.
// Signals without a configured weight are ignored. ok is false when the
// denominator is zero, i.e. nothing could be evaluated.
func CompositeScore(signals map[string]Signal, weights map[string]float64) (score float64, ok bool) {
	names := make([]string, 0, len(signals))
	for name := range signals {
		if _, weighted := weights[name]; weighted {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	num := decimal.Zero
	den := decimal.Zero
	for _, name := range names {
		s := signals[name]
		w := decimal.NewFromFloat(weights[name])
		c := decimal.NewFromFloat(Clamp01(s.Confidence))
		wc := w.Mul(c)
		num = num.Add(wc.Mul(decimal.NewFromFloat(Clamp01(s.Score))))
		den = den.Add(wc)
	}

	if !den.IsPositive() {
		return 0, false
	}
	return Clamp01(num.Div(den).InexactFloat64()), true
}
