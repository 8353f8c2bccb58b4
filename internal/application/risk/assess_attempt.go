package risk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"login-risk-engine/internal/domain/risk"
	"login-risk-engine/internal/pkg/metrics"
)

// DecisionPublisher forwards ledger events to downstream consumers
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, record *risk.AttemptRecord) error
	PublishOutcome(ctx context.Context, record *risk.AttemptRecord) error
}

// sideEffectTimeout bounds ledger, baseline and publish work after a decision
const sideEffectTimeout = 2 * time.Second

// AssessAttemptUseCase scores a login attempt and records the decision
type AssessAttemptUseCase struct {
	aggregator *Aggregator
	ledger     *risk.Ledger
	publisher  DecisionPublisher
	logger     *zap.Logger
	newID      func() string
}

// NewAssessAttemptUseCase creates the use case. publisher may be nil.
func NewAssessAttemptUseCase(aggregator *Aggregator, ledger *risk.Ledger, publisher DecisionPublisher, logger *zap.Logger) *AssessAttemptUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessAttemptUseCase{
		aggregator: aggregator,
		ledger:     ledger,
		publisher:  publisher,
		logger:     logger,
		newID:      func() string { return uuid.NewString() },
	}
}

// Execute validates the attempt, aggregates signals, decides, appends to the
// ledger and, on ALLOW only, promotes the identity baseline.
//
// The only error returned is ErrMalformedAttempt; once a decision exists it
// is always returned, even if recording it fails.
func (uc *AssessAttemptUseCase) Execute(ctx context.Context, attempt *risk.Attempt) (*risk.RiskAssessment, error) {
	if err := attempt.Validate(); err != nil {
		return nil, err
	}
	if attempt.ReceivedAt.IsZero() {
		attempt.ReceivedAt = time.Now().UTC()
	}

	log := uc.logger.With(zap.String("identity_key", attempt.IdentityKey))

	baseline, err := uc.ledger.Baseline(ctx, attempt.IdentityKey)
	if err != nil {
		// Scoring continues as for a first-time identity.
		metrics.SideEffectFailuresTotal.WithLabelValues("baseline_read").Inc()
		log.Warn("baseline unavailable", zap.Error(err))
		baseline = nil
	}

	assessment := uc.aggregator.Assess(ctx, uc.newID(), attempt, baseline)
	log = log.With(zap.String("attempt_id", assessment.AttemptID))

	metrics.DecisionsTotal.WithLabelValues(string(assessment.Decision), assessment.OverrideReason).Inc()
	log.Info("risk decision",
		zap.String("decision", string(assessment.Decision)),
		zap.Float64("composite_score", assessment.CompositeScore),
		zap.String("override_reason", assessment.OverrideReason),
	)

	// Recording must not be cut short by a client that disconnects after the decision.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	record, err := uc.ledger.Append(sctx, attempt.IdentityKey, assessment)
	if err != nil {
		metrics.SideEffectFailuresTotal.WithLabelValues("ledger_append").Inc()
		log.Error("failed to append attempt", zap.Error(err))
	}

	if assessment.Decision == risk.DecisionAllow {
		if _, err := uc.ledger.PromoteBaseline(sctx, attempt.IdentityKey, observationFor(attempt, assessment)); err != nil {
			metrics.SideEffectFailuresTotal.WithLabelValues("baseline_update").Inc()
			log.Error("failed to update baseline", zap.Error(err))
		}
	}

	if record != nil && uc.publisher != nil {
		if err := uc.publisher.PublishDecision(sctx, record); err != nil {
			metrics.SideEffectFailuresTotal.WithLabelValues("publish_decision").Inc()
			log.Warn("failed to publish decision", zap.Error(err))
		}
	}

	return assessment, nil
}

// observationFor extracts what an ALLOW contributes to the baseline. The
// location is only taken from a geo signal that was actually evaluated.
func observationFor(attempt *risk.Attempt, assessment *risk.RiskAssessment) risk.Observation {
	obs := risk.Observation{
		DeviceFingerprint: attempt.DeviceFingerprint,
		DeviceClass:       attempt.DeviceClass,
		SeenAt:            attempt.ReceivedAt,
	}
	if geo, ok := assessment.Signals[risk.ProviderGeoIP]; ok && !geo.Degraded && geo.Location != nil {
		loc := *geo.Location
		obs.Location = &loc
	}
	return obs
}
