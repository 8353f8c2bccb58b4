package risk

import (
	"context"

	"go.uber.org/zap"

	"login-risk-engine/internal/domain/risk"
	"login-risk-engine/internal/pkg/metrics"
)

// RecordOutcomeUseCase closes the loop on a challenged attempt
type RecordOutcomeUseCase struct {
	ledger    *risk.Ledger
	publisher DecisionPublisher
	logger    *zap.Logger
}

// NewRecordOutcomeUseCase creates the use case. publisher may be nil.
func NewRecordOutcomeUseCase(ledger *risk.Ledger, publisher DecisionPublisher, logger *zap.Logger) *RecordOutcomeUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordOutcomeUseCase{ledger: ledger, publisher: publisher, logger: logger}
}

// Execute records the final outcome. The baseline is not changed by an OTP result.
func (uc *RecordOutcomeUseCase) Execute(ctx context.Context, attemptID string, outcome risk.Outcome) (*risk.AttemptRecord, error) {
	record, err := uc.ledger.RecordOutcome(ctx, attemptID, outcome)
	if err != nil {
		return nil, err
	}

	metrics.OutcomesTotal.WithLabelValues(string(outcome)).Inc()
	uc.logger.Info("attempt outcome recorded",
		zap.String("attempt_id", attemptID),
		zap.String("identity_key", record.IdentityKey),
		zap.String("outcome", string(outcome)),
	)

	if uc.publisher != nil {
		if err := uc.publisher.PublishOutcome(ctx, record); err != nil {
			metrics.SideEffectFailuresTotal.WithLabelValues("publish_outcome").Inc()
			uc.logger.Warn("failed to publish outcome", zap.String("attempt_id", attemptID), zap.Error(err))
		}
	}
	return record, nil
}
