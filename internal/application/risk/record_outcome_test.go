package risk

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"login-risk-engine/internal/domain/risk"
)

func TestRecordOutcome_ClosesChallengeOnce(t *testing.T) {
	ledger := newLedger()
	pub := &recordingPublisher{}
	agg := NewAggregator([]risk.SignalProvider{
		deviceScored(map[string]float64{"fp-new": 0.6}),
	}, deviceOnlyConfig(), nil)
	assess := NewAssessAttemptUseCase(agg, ledger, pub, nil)
	record := NewRecordOutcomeUseCase(ledger, pub, nil)
	ctx := context.Background()

	_, err := assess.Execute(ctx, &risk.Attempt{IdentityKey: "ivy", ClientIP: "49.36.10.1", DeviceFingerprint: "fp-home"})
	require.NoError(t, err)
	baseline, err := ledger.Baseline(ctx, "ivy")
	require.NoError(t, err)
	before, err := json.Marshal(baseline)
	require.NoError(t, err)

	challenged, err := assess.Execute(ctx, &risk.Attempt{IdentityKey: "ivy", ClientIP: "49.36.10.1", DeviceFingerprint: "fp-new"})
	require.NoError(t, err)
	require.Equal(t, risk.DecisionChallengeOTP, challenged.Decision)

	rec, err := record.Execute(ctx, challenged.AttemptID, risk.OutcomeOTPPassed)
	require.NoError(t, err)
	assert.Equal(t, risk.OutcomeOTPPassed, rec.FinalOutcome)
	require.NotNil(t, rec.OutcomeAt)
	assert.Equal(t, challenged, rec.Assessment)
	require.Len(t, pub.outcomes, 1)

	// A passed OTP does not teach the baseline anything
	baseline, err = ledger.Baseline(ctx, "ivy")
	require.NoError(t, err)
	after, err := json.Marshal(baseline)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	_, err = record.Execute(ctx, challenged.AttemptID, risk.OutcomeOTPFailed)
	assert.ErrorIs(t, err, risk.ErrOutcomeAlreadyRecorded)
}

func TestRecordOutcome_Rejects(t *testing.T) {
	ledger := newLedger()
	agg := NewAggregator([]risk.SignalProvider{deviceScored(nil)}, deviceOnlyConfig(), nil)
	assess := NewAssessAttemptUseCase(agg, ledger, nil, nil)
	record := NewRecordOutcomeUseCase(ledger, nil, nil)
	ctx := context.Background()

	allowed, err := assess.Execute(ctx, &risk.Attempt{IdentityKey: "jack", ClientIP: "49.36.10.1", DeviceFingerprint: "fp"})
	require.NoError(t, err)
	require.Equal(t, risk.DecisionAllow, allowed.Decision)

	_, err = record.Execute(ctx, allowed.AttemptID, risk.OutcomeOTPPassed)
	assert.ErrorIs(t, err, risk.ErrOutcomeNotExpected)

	_, err = record.Execute(ctx, "missing", risk.OutcomeOTPPassed)
	assert.ErrorIs(t, err, risk.ErrAttemptNotFound)

	_, err = record.Execute(ctx, allowed.AttemptID, risk.OutcomeLoggedIn)
	assert.ErrorIs(t, err, risk.ErrInvalidOutcome)
}
