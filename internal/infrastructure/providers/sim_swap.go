package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"login-risk-engine/internal/domain/risk"
	"login-risk-engine/internal/infrastructure/telecom"
)

// SimSwapLookup reports the latest SIM replacement for an E.164 number
type SimSwapLookup interface {
	LookupSimSwap(ctx context.Context, e164 string) (*telecom.SimSwapInfo, error)
}

// SimSwapConfig tunes the SIM swap provider
type SimSwapConfig struct {
	DefaultRegion string
	// Swaps younger than RecentWindow keep their full decayed weight
	RecentWindow time.Duration
	// Risk decays linearly to zero over DecayWindow
	DecayWindow time.Duration
}

// DefaultSimSwapConfig returns a 7 day recent window over a 30 day decay
func DefaultSimSwapConfig() SimSwapConfig {
	return SimSwapConfig{
		DefaultRegion: "IN",
		RecentWindow:  7 * 24 * time.Hour,
		DecayWindow:   30 * 24 * time.Hour,
	}
}

const olderSwapFactor = 0.6

// SimSwapProvider scores recent SIM replacement events
type SimSwapProvider struct {
	lookup SimSwapLookup
	cfg    SimSwapConfig
	now    func() time.Time
}

// NewSimSwapProvider creates the provider
func NewSimSwapProvider(lookup SimSwapLookup, cfg SimSwapConfig) *SimSwapProvider {
	return &SimSwapProvider{lookup: lookup, cfg: cfg, now: time.Now}
}

func (p *SimSwapProvider) Name() string { return risk.ProviderSimSwap }

func (p *SimSwapProvider) Applicable(a *risk.Attempt) bool {
	return strings.TrimSpace(a.PhoneNumber) != ""
}

func (p *SimSwapProvider) Evaluate(ctx context.Context, a *risk.Attempt, _ *risk.Baseline) (risk.Signal, error) {
	_, e164, ok := parsePhone(a.PhoneNumber, p.cfg.DefaultRegion)
	if !ok {
		// Nothing to look up; the phone carrier signal already reports the format.
		return risk.Signal{Name: p.Name(), Score: 0, Confidence: 0, Evidence: []string{"invalid_format"}}, nil
	}

	info, err := p.lookup.LookupSimSwap(ctx, e164)
	if err != nil {
		return risk.Signal{}, fmt.Errorf("%w: sim swap lookup: %v", risk.ErrProviderError, err)
	}

	sig := risk.Signal{Name: p.Name(), Confidence: 0.9, Evidence: []string{}}
	if !info.Swapped {
		return sig, nil
	}
	if info.SwappedAt == nil {
		sig.Score = 0.7
		sig.Confidence = 0.6
		sig.Evidence = append(sig.Evidence, "sim_swap_undated")
		return sig, nil
	}

	sig.Score, sig.Evidence = p.recencyScore(p.now().Sub(*info.SwappedAt))
	return sig, nil
}

// recencyScore decays linearly over the decay window; swaps older than the
// recent window are further discounted
func (p *SimSwapProvider) recencyScore(age time.Duration) (float64, []string) {
	if age < 0 {
		age = 0
	}
	if age >= p.cfg.DecayWindow {
		return 0, []string{"sim_swap_stale"}
	}
	decay := 1 - float64(age)/float64(p.cfg.DecayWindow)
	if age < p.cfg.RecentWindow {
		return risk.Clamp01(decay), []string{"sim_swap_recent"}
	}
	return risk.Clamp01(decay * olderSwapFactor), []string{"sim_swap"}
}
