package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"login-risk-engine/internal/domain/risk"
)

func sampleRecord() *risk.AttemptRecord {
	computed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return &risk.AttemptRecord{
		AttemptID:   "att-1",
		IdentityKey: "alice",
		Sequence:    7,
		Assessment: &risk.RiskAssessment{
			AttemptID: "att-1",
			Signals: map[string]risk.Signal{
				risk.ProviderPhoneCarrier: {Name: risk.ProviderPhoneCarrier, Score: 0.6, Confidence: 0.9, Evidence: []string{"voip_line", "unknown_carrier"}, LatencyMs: 12},
				risk.ProviderGeoIP: {Name: risk.ProviderGeoIP, Score: 0.1, Confidence: 0.5, Evidence: []string{},
					Location: &risk.Location{Latitude: 19.076, Longitude: 72.8777, Country: "IN", City: "Mumbai"}},
				risk.ProviderSimSwap: {Name: risk.ProviderSimSwap, Score: 0.5, Confidence: 0, Evidence: []string{"provider_timeout"}, Degraded: true, Error: "deadline exceeded"},
			},
			CompositeScore: 0.4,
			Decision:       risk.DecisionChallengeOTP,
			ComputedAt:     computed,
		},
		FinalOutcome: risk.OutcomeOTPPending,
		RecordedAt:   computed.Add(time.Millisecond),
	}
}

func TestAttemptModel_RoundTrip(t *testing.T) {
	rec := sampleRecord()

	model, err := recordToModel(rec)
	require.NoError(t, err)
	assert.Equal(t, "CHALLENGE_OTP", model.Decision)
	assert.Equal(t, "otp_pending", model.FinalOutcome)
	assert.Equal(t, int64(7), model.Sequence)

	back, err := modelToRecord(model)
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}

func TestAttemptModel_ReplaysToSameScore(t *testing.T) {
	rec := sampleRecord()
	weights := map[string]float64{
		risk.ProviderPhoneCarrier: 0.25,
		risk.ProviderGeoIP:        0.25,
		risk.ProviderSimSwap:      0.15,
	}
	want, ok := risk.CompositeScore(rec.Assessment.Signals, weights)
	require.True(t, ok)

	model, err := recordToModel(rec)
	require.NoError(t, err)
	back, err := modelToRecord(model)
	require.NoError(t, err)

	got, ok := risk.CompositeScore(back.Assessment.Signals, weights)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestAttemptModel_RejectsMissingAssessment(t *testing.T) {
	_, err := recordToModel(&risk.AttemptRecord{AttemptID: "att-2"})
	assert.Error(t, err)
}

func TestAttemptModel_CorruptSignals(t *testing.T) {
	_, err := modelToRecord(&AttemptRecordModel{AttemptID: "att-3", Signals: "{"})
	assert.Error(t, err)
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "risk", Password: "pw", Database: "login_risk", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=risk password=pw dbname=login_risk sslmode=disable", cfg.DSN())
}
