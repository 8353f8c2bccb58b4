package risk

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"login-risk-engine/internal/domain/risk"
	"login-risk-engine/internal/infrastructure/geoip"
	"login-risk-engine/internal/infrastructure/memory"
	"login-risk-engine/internal/infrastructure/providers"
	"login-risk-engine/internal/infrastructure/telecom"
)

func newLedger() *risk.Ledger {
	return risk.NewLedger(memory.NewAttemptStore(), memory.NewBaselineStore())
}

// mockProviders wires the real providers to the demo backends
func mockProviders() []risk.SignalProvider {
	tel := telecom.NewMockClient(nil)
	return []risk.SignalProvider{
		providers.NewPhoneCarrierProvider(tel, providers.DefaultPhoneCarrierConfig()),
		providers.NewGeoIPProvider(geoip.NewMockResolver(), providers.DefaultGeoIPConfig()),
		providers.NewDeviceProvider(0.5),
		providers.NewBehavioralProvider(),
		providers.NewSimSwapProvider(tel, providers.DefaultSimSwapConfig()),
	}
}

// steadyTyping is 50 keystrokes at ~96 WPM with one correction
func steadyTyping() []risk.KeystrokeSample {
	const start = int64(1_700_000_000_000)
	samples := make([]risk.KeystrokeSample, 50)
	for i := range samples {
		key := "a"
		if i == 25 {
			key = "Backspace"
		}
		pressed := start + int64(i)*126
		samples[i] = risk.KeystrokeSample{Key: key, PressedAt: pressed, ReleasedAt: pressed + 80}
	}
	return samples
}

// deviceScored scores each fingerprint from a table; unknown fingerprints score 0
func deviceScored(scores map[string]float64) *fakeProvider {
	return &fakeProvider{name: risk.ProviderDevice, eval: func(_ context.Context, a *risk.Attempt, _ *risk.Baseline) (risk.Signal, error) {
		return risk.Signal{Name: risk.ProviderDevice, Score: scores[a.DeviceFingerprint], Confidence: 1}, nil
	}}
}

func TestAssessAttempt_VoIPNumberFirstLoginIsAllowed(t *testing.T) {
	ledger := newLedger()
	pub := &recordingPublisher{}
	uc := NewAssessAttemptUseCase(NewAggregator(mockProviders(), engineConfig(2*time.Second), nil), ledger, pub, nil)

	a, err := uc.Execute(context.Background(), &risk.Attempt{
		IdentityKey:       "alice",
		PhoneNumber:       "+919876543666",
		DeviceFingerprint: "fp-alice-phone",
		DeviceClass:       "mobile",
		ClientIP:          "49.36.10.1",
		TypingSamples:     steadyTyping(),
	})
	require.NoError(t, err)

	phone := a.Signals[risk.ProviderPhoneCarrier]
	assert.GreaterOrEqual(t, phone.Score, 0.4)
	assert.LessOrEqual(t, phone.Score, 0.6)
	assert.GreaterOrEqual(t, phone.Confidence, 0.8)

	assert.Less(t, a.Signals[risk.ProviderBehavioral].Score, 0.2)
	assert.Equal(t, 0.5, a.Signals[risk.ProviderDevice].Confidence)
	assert.Equal(t, 0.5, a.Signals[risk.ProviderGeoIP].Confidence)
	assert.Zero(t, a.Signals[risk.ProviderGeoIP].Score)

	assert.Less(t, a.CompositeScore, 0.4)
	assert.Equal(t, risk.DecisionAllow, a.Decision)

	// ALLOW promotes the baseline and records the login
	b, err := ledger.Baseline(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.IsTrusted("fp-alice-phone"))
	require.NotNil(t, b.LastKnownLocation)
	assert.Equal(t, "Mumbai", b.LastKnownLocation.City)

	rec, err := ledger.Get(context.Background(), a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, risk.OutcomeLoggedIn, rec.FinalOutcome)
	assert.Equal(t, int64(1), rec.Sequence)
	require.Len(t, pub.decisions, 1)
	assert.Equal(t, a.AttemptID, pub.decisions[0].AttemptID)
}

func TestAssessAttempt_TorExitNodeIsBlocked(t *testing.T) {
	ledger := newLedger()
	uc := NewAssessAttemptUseCase(NewAggregator(mockProviders(), engineConfig(2*time.Second), nil), ledger, nil, nil)

	a, err := uc.Execute(context.Background(), &risk.Attempt{
		IdentityKey:       "bob",
		PhoneNumber:       "+919876543210",
		DeviceFingerprint: "fp-bob",
		ClientIP:          "185.220.101.34",
		TypingSamples:     steadyTyping(),
	})
	require.NoError(t, err)

	assert.Equal(t, risk.DecisionBlock, a.Decision)
	assert.Equal(t, "force_block:tor_exit_node", a.OverrideReason)
	assert.Less(t, a.CompositeScore, 0.8)

	b, err := ledger.Baseline(context.Background(), "bob")
	require.NoError(t, err)
	assert.Nil(t, b, "a blocked attempt must not create a baseline")

	rec, err := ledger.Get(context.Background(), a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, risk.OutcomeBlocked, rec.FinalOutcome)
}

func TestAssessAttempt_AllProvidersDownFailsClosed(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	var hung []risk.SignalProvider
	for _, name := range []string{risk.ProviderPhoneCarrier, risk.ProviderGeoIP, risk.ProviderDevice, risk.ProviderBehavioral, risk.ProviderSimSwap} {
		hung = append(hung, hanging(name, release))
	}
	ledger := newLedger()
	uc := NewAssessAttemptUseCase(NewAggregator(hung, engineConfig(30*time.Millisecond), nil), ledger, nil, nil)

	a, err := uc.Execute(context.Background(), &risk.Attempt{IdentityKey: "carol", ClientIP: "49.36.10.1"})
	require.NoError(t, err)

	assert.Equal(t, risk.OverrideAllSignalsUnavailable, a.OverrideReason)
	assert.Equal(t, 0.5, a.CompositeScore)
	assert.Equal(t, risk.DecisionChallengeOTP, a.Decision)

	rec, err := ledger.Get(context.Background(), a.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, risk.OutcomeOTPPending, rec.FinalOutcome)
}

func TestAssessAttempt_NonAllowNeverTouchesBaseline(t *testing.T) {
	ledger := newLedger()
	agg := NewAggregator([]risk.SignalProvider{
		deviceScored(map[string]float64{"fp-challenge": 0.5, "fp-block": 0.95}),
	}, deviceOnlyConfig(), nil)
	uc := NewAssessAttemptUseCase(agg, ledger, nil, nil)
	ctx := context.Background()

	first, err := uc.Execute(ctx, &risk.Attempt{IdentityKey: "dave", ClientIP: "49.36.10.1", DeviceFingerprint: "fp-home", DeviceClass: "desktop"})
	require.NoError(t, err)
	require.Equal(t, risk.DecisionAllow, first.Decision)

	snapshot := func() []byte {
		b, err := ledger.Baseline(ctx, "dave")
		require.NoError(t, err)
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		return raw
	}
	before := snapshot()

	for _, fp := range []string{"fp-challenge", "fp-block"} {
		a, err := uc.Execute(ctx, &risk.Attempt{IdentityKey: "dave", ClientIP: "192.0.2.7", DeviceFingerprint: fp, DeviceClass: "mobile"})
		require.NoError(t, err)
		require.NotEqual(t, risk.DecisionAllow, a.Decision)
	}

	assert.Equal(t, string(before), string(snapshot()))

	history, err := ledger.History(ctx, "dave", 0)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestAssessAttempt_ConcurrentAllowsKeepBothDevices(t *testing.T) {
	ledger := newLedger()
	agg := NewAggregator([]risk.SignalProvider{deviceScored(nil)}, deviceOnlyConfig(), nil)
	uc := NewAssessAttemptUseCase(agg, ledger, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, fp := range []string{"fp-laptop", "fp-phone"} {
		wg.Add(1)
		go func(fp string) {
			defer wg.Done()
			a, err := uc.Execute(ctx, &risk.Attempt{IdentityKey: "erin", ClientIP: "49.36.10.1", DeviceFingerprint: fp})
			assert.NoError(t, err)
			assert.Equal(t, risk.DecisionAllow, a.Decision)
		}(fp)
	}
	wg.Wait()

	b, err := ledger.Baseline(ctx, "erin")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, []string{"fp-laptop", "fp-phone"}, b.TrustedDevices)
	assert.Equal(t, int64(2), b.Version)
}

func TestAssessAttempt_MalformedAttemptInvokesNoProvider(t *testing.T) {
	called := false
	p := &fakeProvider{name: risk.ProviderDevice, eval: func(context.Context, *risk.Attempt, *risk.Baseline) (risk.Signal, error) {
		called = true
		return risk.Signal{}, nil
	}}
	ledger := newLedger()
	uc := NewAssessAttemptUseCase(NewAggregator([]risk.SignalProvider{p}, deviceOnlyConfig(), nil), ledger, nil, nil)

	for _, attempt := range []*risk.Attempt{
		{ClientIP: "49.36.10.1"},
		{IdentityKey: "frank"},
		{IdentityKey: "  ", ClientIP: "49.36.10.1"},
	} {
		_, err := uc.Execute(context.Background(), attempt)
		assert.ErrorIs(t, err, risk.ErrMalformedAttempt)
	}
	assert.False(t, called)

	history, err := ledger.History(context.Background(), "frank", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAssessAttempt_PublishFailureDoesNotFailDecision(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	agg := NewAggregator([]risk.SignalProvider{deviceScored(nil)}, deviceOnlyConfig(), nil)
	uc := NewAssessAttemptUseCase(agg, newLedger(), pub, nil)

	a, err := uc.Execute(context.Background(), &risk.Attempt{IdentityKey: "gina", ClientIP: "49.36.10.1", DeviceFingerprint: "fp"})
	require.NoError(t, err)
	assert.Equal(t, risk.DecisionAllow, a.Decision)
	assert.Len(t, pub.decisions, 1)
}

func TestAssessAttempt_CancelledRequestStillRecords(t *testing.T) {
	ledger := newLedger()
	agg := NewAggregator([]risk.SignalProvider{deviceScored(nil)}, deviceOnlyConfig(), nil)
	uc := NewAssessAttemptUseCase(agg, ledger, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := uc.Execute(ctx, &risk.Attempt{IdentityKey: "hank", ClientIP: "49.36.10.1", DeviceFingerprint: "fp"})
	require.NoError(t, err)

	_, err = ledger.Get(context.Background(), a.AttemptID)
	assert.NoError(t, err)
}
