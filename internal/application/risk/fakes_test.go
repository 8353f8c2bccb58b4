package risk

import (
	"context"
	"sync"
	"time"

	"login-risk-engine/internal/domain/risk"
)

type evalFunc func(ctx context.Context, a *risk.Attempt, b *risk.Baseline) (risk.Signal, error)

// fakeProvider is a signal provider driven by a function
type fakeProvider struct {
	name       string
	applicable func(*risk.Attempt) bool
	eval       evalFunc
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Applicable(a *risk.Attempt) bool {
	if f.applicable == nil {
		return true
	}
	return f.applicable(a)
}

func (f *fakeProvider) Evaluate(ctx context.Context, a *risk.Attempt, b *risk.Baseline) (risk.Signal, error) {
	return f.eval(ctx, a, b)
}

func fixed(name string, score, confidence float64, evidence ...string) *fakeProvider {
	return &fakeProvider{name: name, eval: func(context.Context, *risk.Attempt, *risk.Baseline) (risk.Signal, error) {
		return risk.Signal{Name: name, Score: score, Confidence: confidence, Evidence: evidence}, nil
	}}
}

// hanging ignores cancellation until the test ends
func hanging(name string, release <-chan struct{}) *fakeProvider {
	return &fakeProvider{name: name, eval: func(context.Context, *risk.Attempt, *risk.Baseline) (risk.Signal, error) {
		<-release
		return risk.Signal{Name: name, Score: 0, Confidence: 1}, nil
	}}
}

func engineConfig(timeout time.Duration) risk.EngineConfig {
	return risk.EngineConfig{
		Thresholds:                   risk.Thresholds{Challenge: 0.4, Block: 0.8},
		AllProvidersDownDefaultScore: 0.5,
		Providers: map[string]risk.ProviderPolicy{
			risk.ProviderPhoneCarrier: {Enabled: true, Weight: 0.25, Timeout: timeout, DegradedDefaultScore: 0.5},
			risk.ProviderGeoIP:        {Enabled: true, Weight: 0.25, Timeout: timeout, DegradedDefaultScore: 0.5},
			risk.ProviderDevice:       {Enabled: true, Weight: 0.20, Timeout: timeout, DegradedDefaultScore: 0.5},
			risk.ProviderBehavioral:   {Enabled: true, Weight: 0.15, Timeout: timeout, DegradedDefaultScore: 0.5},
			risk.ProviderSimSwap:      {Enabled: true, Weight: 0.15, Timeout: timeout, DegradedDefaultScore: 0.5},
		},
	}
}

func deviceOnlyConfig() risk.EngineConfig {
	return risk.EngineConfig{
		Thresholds:                   risk.Thresholds{Challenge: 0.4, Block: 0.8},
		AllProvidersDownDefaultScore: 0.5,
		Providers: map[string]risk.ProviderPolicy{
			risk.ProviderDevice: {Enabled: true, Weight: 1, Timeout: time.Second, DegradedDefaultScore: 0.5},
		},
	}
}

// recordingPublisher captures published records
type recordingPublisher struct {
	mu        sync.Mutex
	decisions []*risk.AttemptRecord
	outcomes  []*risk.AttemptRecord
	err       error
}

func (p *recordingPublisher) PublishDecision(_ context.Context, r *risk.AttemptRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, r)
	return p.err
}

func (p *recordingPublisher) PublishOutcome(_ context.Context, r *risk.AttemptRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, r)
	return p.err
}
