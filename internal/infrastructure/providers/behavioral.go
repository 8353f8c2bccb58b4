package providers

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"login-risk-engine/internal/domain/risk"
)

// Human typing ranges
const (
	minWPM          = 20
	maxWPM          = 100
	maxErrorRate    = 0.10
	minAvgDwellMs   = 50
	maxAvgDwellMs   = 300
	lowConsistency  = 0.5
	minTypingSample = 2
)

// TypingMetrics summarises a keystroke timing series
type TypingMetrics struct {
	Keystrokes  int
	WPM         float64
	ErrorRate   float64
	AvgDwellMs  float64
	AvgFlightMs float64
	Consistency float64
}

// BehavioralProvider scores typing rhythm
type BehavioralProvider struct{}

// NewBehavioralProvider creates the provider
func NewBehavioralProvider() *BehavioralProvider {
	return &BehavioralProvider{}
}

func (p *BehavioralProvider) Name() string { return risk.ProviderBehavioral }

// Applicable needs at least two timed keystrokes; fewer is skipped, not degraded
func (p *BehavioralProvider) Applicable(a *risk.Attempt) bool {
	return len(a.TypingSamples) >= minTypingSample
}

func (p *BehavioralProvider) Evaluate(ctx context.Context, a *risk.Attempt, _ *risk.Baseline) (risk.Signal, error) {
	if err := ctx.Err(); err != nil {
		return risk.Signal{}, err
	}
	m, err := ComputeTypingMetrics(a.TypingSamples)
	if err != nil {
		return risk.Signal{}, fmt.Errorf("%w: %v", risk.ErrProviderError, err)
	}

	var score ladder
	evidence := []string{}
	if m.WPM < minWPM || m.WPM > maxWPM {
		score.add(0.35)
		evidence = append(evidence, "typing_speed_anomaly")
	}
	if m.ErrorRate > maxErrorRate {
		score.add(0.3)
		evidence = append(evidence, "high_error_rate")
	}
	score.add(0.25 * (1 - m.Consistency))
	if m.Consistency < lowConsistency {
		evidence = append(evidence, "irregular_rhythm")
	}
	if m.AvgDwellMs < minAvgDwellMs || m.AvgDwellMs > maxAvgDwellMs {
		score.add(0.1)
		evidence = append(evidence, "dwell_time_anomaly")
	}

	return risk.Signal{
		Name:       p.Name(),
		Score:      score.score(),
		Confidence: math.Min(0.9, math.Max(0.2, float64(m.Keystrokes)/20)),
		Evidence:   evidence,
	}, nil
}

// ComputeTypingMetrics derives speed, error rate, dwell and rhythm from samples.
// Dwell is release minus press; flight is press minus the previous release,
// counted only when positive.
func ComputeTypingMetrics(samples []risk.KeystrokeSample) (TypingMetrics, error) {
	if len(samples) < minTypingSample {
		return TypingMetrics{}, fmt.Errorf("need at least %d keystrokes, got %d", minTypingSample, len(samples))
	}

	sorted := append([]risk.KeystrokeSample(nil), samples...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PressedAt < sorted[j].PressedAt })

	var (
		dwells      []float64
		flights     []float64
		corrections int
		lastRelease int64
	)
	first := sorted[0].PressedAt
	for i, s := range sorted {
		if d := s.ReleasedAt - s.PressedAt; d > 0 {
			dwells = append(dwells, float64(d))
		}
		if i > 0 {
			if f := s.PressedAt - sorted[i-1].ReleasedAt; f > 0 {
				flights = append(flights, float64(f))
			}
		}
		if s.ReleasedAt > lastRelease {
			lastRelease = s.ReleasedAt
		}
		if isCorrectionKey(s.Key) {
			corrections++
		}
	}

	spanMs := float64(lastRelease - first)
	if spanMs <= 0 {
		return TypingMetrics{}, fmt.Errorf("keystroke series spans no time")
	}

	n := len(sorted)
	return TypingMetrics{
		Keystrokes:  n,
		WPM:         (float64(n) / 5) / (spanMs / 60000),
		ErrorRate:   float64(corrections) / float64(n),
		AvgDwellMs:  mean(dwells),
		AvgFlightMs: mean(flights),
		Consistency: rhythmConsistency(flights),
	}, nil
}

// rhythmConsistency is max(0, 1 - stddev/mean) of flight times, using the
// population standard deviation
func rhythmConsistency(flights []float64) float64 {
	if len(flights) < 2 {
		return 1
	}
	mu, sd := stat.PopMeanStdDev(flights, nil)
	if mu <= 0 {
		return 0
	}
	return math.Max(0, 1-sd/mu)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func isCorrectionKey(key string) bool {
	return key == "Backspace" || key == "Delete"
}
