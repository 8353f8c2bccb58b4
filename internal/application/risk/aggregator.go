package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"login-risk-engine/internal/domain/risk"
	"login-risk-engine/internal/pkg/metrics"
)

const tracerName = "login-risk-engine/aggregator"

// Aggregator runs the applicable signal providers concurrently and combines
// their signals into one assessment
type Aggregator struct {
	providers []risk.SignalProvider
	cfg       risk.EngineConfig
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAggregator creates an aggregator. Providers that are missing from the
// configuration or disabled there are dropped.
func NewAggregator(providers []risk.SignalProvider, cfg risk.EngineConfig, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	active := make([]risk.SignalProvider, 0, len(providers))
	for _, p := range providers {
		if policy, ok := cfg.Policy(p.Name()); ok && policy.Enabled {
			active = append(active, p)
		}
	}
	return &Aggregator{
		providers: active,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "aggregator")),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
}

// Config returns the active engine configuration
func (a *Aggregator) Config() risk.EngineConfig {
	return a.cfg
}

// Assess builds the assessment for an attempt. It never fails: provider
// timeouts, errors and panics become degraded signals, and the call returns
// once every provider has settled or hit its own timeout.
func (a *Aggregator) Assess(ctx context.Context, attemptID string, attempt *risk.Attempt, baseline *risk.Baseline) *risk.RiskAssessment {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "risk.assess", trace.WithAttributes(
		attribute.String("attempt.id", attemptID),
	))
	defer span.End()

	applicable := make([]risk.SignalProvider, 0, len(a.providers))
	for _, p := range a.providers {
		if p.Applicable(attempt) {
			applicable = append(applicable, p)
		}
	}

	results := make([]risk.Signal, len(applicable))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range applicable {
		g.Go(func() error {
			results[i] = a.runProvider(gctx, p, attempt, baseline)
			return nil
		})
	}
	_ = g.Wait()

	signals := make(map[string]risk.Signal, len(results))
	for _, s := range results {
		signals[s.Name] = s
	}

	assessment := &risk.RiskAssessment{
		AttemptID:  attemptID,
		Signals:    signals,
		ComputedAt: a.now().UTC(),
	}
	a.score(assessment)

	metrics.AssessmentDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Float64("risk.composite_score", assessment.CompositeScore),
		attribute.String("risk.decision", string(assessment.Decision)),
		attribute.Int("risk.signals", len(signals)),
	)
	return assessment
}

// score fills CompositeScore, Decision and OverrideReason
func (a *Aggregator) score(assessment *risk.RiskAssessment) {
	composite, ok := risk.CompositeScore(assessment.Signals, a.cfg.Weights())
	if !ok {
		composite = a.cfg.AllProvidersDownDefaultScore
		assessment.OverrideReason = risk.OverrideAllSignalsUnavailable
	}
	assessment.CompositeScore = composite

	decision, reason := risk.Decide(assessment, a.cfg.Thresholds)
	assessment.Decision = decision
	if reason != "" {
		assessment.OverrideReason = reason
	}
}

type providerResult struct {
	signal risk.Signal
	err    error
}

// runProvider evaluates one provider under its own timeout. A provider that
// ignores cancellation is abandoned and its late result discarded.
func (a *Aggregator) runProvider(ctx context.Context, p risk.SignalProvider, attempt *risk.Attempt, baseline *risk.Baseline) risk.Signal {
	name := p.Name()
	policy, _ := a.cfg.Policy(name)

	ctx, span := a.tracer.Start(ctx, "risk.provider."+name)
	defer span.End()

	pctx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan providerResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- providerResult{err: fmt.Errorf("%w: panic: %v", risk.ErrProviderError, r)}
			}
		}()
		sig, err := p.Evaluate(pctx, attempt, baseline)
		done <- providerResult{signal: sig, err: err}
	}()

	var res providerResult
	select {
	case res = <-done:
		if res.err == nil && pctx.Err() != nil {
			res.err = fmt.Errorf("%w after %s", risk.ErrProviderTimeout, policy.Timeout)
		}
	case <-pctx.Done():
		res.err = fmt.Errorf("%w after %s", risk.ErrProviderTimeout, policy.Timeout)
	}
	latency := time.Since(start)
	metrics.ProviderLatency.WithLabelValues(name).Observe(latency.Seconds())

	if res.err == nil {
		res.err = validateSignal(res.signal)
	}
	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) {
			res.err = fmt.Errorf("%w: %v", risk.ErrProviderTimeout, res.err)
		}
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
		return a.degraded(name, policy, res.err, latency)
	}

	sig := res.signal
	sig.Name = name
	sig.Degraded = false
	sig.Error = ""
	sig.LatencyMs = latency.Milliseconds()
	if sig.Evidence == nil {
		sig.Evidence = []string{}
	}
	span.SetAttributes(
		attribute.Float64("signal.score", sig.Score),
		attribute.Float64("signal.confidence", sig.Confidence),
	)
	return sig
}

func (a *Aggregator) degraded(name string, policy risk.ProviderPolicy, err error, latency time.Duration) risk.Signal {
	reason := "provider_error"
	if errors.Is(err, risk.ErrProviderTimeout) {
		reason = "provider_timeout"
	}
	metrics.ProviderDegradedTotal.WithLabelValues(name, reason).Inc()
	a.logger.Warn("signal provider degraded",
		zap.String("provider", name),
		zap.String("reason", reason),
		zap.Duration("latency", latency),
		zap.Error(err),
	)
	return risk.Signal{
		Name:       name,
		Score:      policy.DegradedDefaultScore,
		Confidence: 0,
		Evidence:   []string{reason},
		Degraded:   true,
		LatencyMs:  latency.Milliseconds(),
		Error:      err.Error(),
	}
}

// validateSignal rejects values outside the Signal contract
func validateSignal(s risk.Signal) error {
	if math.IsNaN(s.Score) || s.Score < 0 || s.Score > 1 {
		return fmt.Errorf("%w: score %v out of range", risk.ErrProviderError, s.Score)
	}
	if math.IsNaN(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", risk.ErrProviderError, s.Confidence)
	}
	return nil
}
