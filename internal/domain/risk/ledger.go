package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"login-risk-engine/internal/pkg/syncutil"
)

const (
	defaultHistoryLimit = 50
	maxAppendAttempts   = 32
)

// Ledger is the append-only record of decisions and the owner of identity baselines.
//
// Appends for one identity are serialised in-process. Across instances the
// store's (identity, sequence) uniqueness decides, and the loser re-reads and
// retries, so Sequence increases by one and RecordedAt is strictly increasing
// within the identity.
type Ledger struct {
	attempts  AttemptRepository
	baselines BaselineRepository
	locks     syncutil.ShardedMutex
	now       func() time.Time
}

// NewLedger creates a new ledger
func NewLedger(attempts AttemptRepository, baselines BaselineRepository) *Ledger {
	return &Ledger{
		attempts:  attempts,
		baselines: baselines,
		now:       time.Now,
	}
}

// SetClock replaces the time source
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Append records a fresh assessment for an identity
func (l *Ledger) Append(ctx context.Context, identityKey string, assessment *RiskAssessment) (*AttemptRecord, error) {
	if identityKey == "" || assessment == nil || assessment.AttemptID == "" {
		return nil, wrapMalformed("attempt record requires identity and assessment")
	}

	unlock := l.locks.Lock(identityKey)
	defer unlock()

	for i := 0; i < maxAppendAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := l.nextRecord(ctx, identityKey, assessment)
		if err != nil {
			return nil, err
		}
		err = l.attempts.Create(ctx, record)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, ErrSequenceConflict) {
			return nil, fmt.Errorf("failed to append attempt: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to append attempt after %d tries: %w", maxAppendAttempts, ErrSequenceConflict)
}

// nextRecord builds the record that would follow the identity's latest entry
func (l *Ledger) nextRecord(ctx context.Context, identityKey string, assessment *RiskAssessment) (*AttemptRecord, error) {
	last, err := l.attempts.LatestByIdentity(ctx, identityKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest attempt: %w", err)
	}

	recordedAt := l.now().UTC()
	var seq int64 = 1
	if last != nil {
		seq = last.Sequence + 1
		if !recordedAt.After(last.RecordedAt) {
			recordedAt = last.RecordedAt.Add(time.Microsecond)
		}
	}

	return &AttemptRecord{
		AttemptID:    assessment.AttemptID,
		IdentityKey:  identityKey,
		Sequence:     seq,
		Assessment:   assessment,
		FinalOutcome: InitialOutcome(assessment.Decision),
		RecordedAt:   recordedAt,
	}, nil
}

// RecordOutcome closes the loop on a CHALLENGE_OTP attempt. The assessment is never touched.
func (l *Ledger) RecordOutcome(ctx context.Context, attemptID string, outcome Outcome) (*AttemptRecord, error) {
	if !outcome.IsOTPResolution() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	record, err := l.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if record.Assessment == nil || record.Assessment.Decision != DecisionChallengeOTP {
		return nil, ErrOutcomeNotExpected
	}
	if record.FinalOutcome != OutcomeOTPPending {
		return nil, ErrOutcomeAlreadyRecorded
	}

	at := l.now().UTC()
	if err := l.attempts.SetOutcome(ctx, attemptID, OutcomeOTPPending, outcome, at); err != nil {
		return nil, err
	}

	record.FinalOutcome = outcome
	record.OutcomeAt = &at
	return record, nil
}

// Baseline returns the identity's baseline, or nil for an identity never allowed
func (l *Ledger) Baseline(ctx context.Context, identityKey string) (*Baseline, error) {
	b, err := l.baselines.Get(ctx, identityKey)
	if errors.Is(err, ErrBaselineNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline: %w", err)
	}
	return b, nil
}

// PromoteBaseline merges an ALLOW observation into the identity baseline atomically.
// Callers must only invoke it for ALLOW decisions.
func (l *Ledger) PromoteBaseline(ctx context.Context, identityKey string, obs Observation) (*Baseline, error) {
	if obs.SeenAt.IsZero() {
		obs.SeenAt = l.now().UTC()
	}
	b, err := l.baselines.Update(ctx, identityKey, func(b *Baseline) error {
		b.IdentityKey = identityKey
		b.Apply(obs)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update baseline: %w", err)
	}
	return b, nil
}

// Get returns a single attempt record
func (l *Ledger) Get(ctx context.Context, attemptID string) (*AttemptRecord, error) {
	return l.attempts.GetByID(ctx, attemptID)
}

// History returns an identity's most recent attempts, newest first
func (l *Ledger) History(ctx context.Context, identityKey string, limit int) ([]*AttemptRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultHistoryLimit
	}
	return l.attempts.ListByIdentity(ctx, identityKey, limit)
}
