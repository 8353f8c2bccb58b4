package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWeights = map[string]float64{
	ProviderPhoneCarrier: 0.25,
	ProviderGeoIP:        0.25,
	ProviderDevice:       0.20,
	ProviderBehavioral:   0.15,
	ProviderSimSwap:      0.15,
}

func sampleSignals() map[string]Signal {
	return map[string]Signal{
		ProviderPhoneCarrier: {Name: ProviderPhoneCarrier, Score: 0.6, Confidence: 0.9},
		ProviderGeoIP:        {Name: ProviderGeoIP, Score: 0.1, Confidence: 0.5},
		ProviderDevice:       {Name: ProviderDevice, Score: 0.5, Confidence: 0.5},
		ProviderBehavioral:   {Name: ProviderBehavioral, Score: 0.05, Confidence: 0.9},
		ProviderSimSwap:      {Name: ProviderSimSwap, Score: 0, Confidence: 0.9},
	}
}

func TestCompositeScore_Deterministic(t *testing.T) {
	first, ok := CompositeScore(sampleSignals(), testWeights)
	require.True(t, ok)

	for i := 0; i < 100; i++ {
		got, ok := CompositeScore(sampleSignals(), testWeights)
		require.True(t, ok)
		assert.Equal(t, first, got)
	}
}

func TestCompositeScore_WeightedByConfidence(t *testing.T) {
	signals := map[string]Signal{
		"a": {Score: 1, Confidence: 1},
		"b": {Score: 0, Confidence: 1},
	}
	got, ok := CompositeScore(signals, map[string]float64{"a": 0.75, "b": 0.25})
	require.True(t, ok)
	assert.InDelta(t, 0.75, got, 1e-12)

	signals["b"] = Signal{Score: 0, Confidence: 0.5}
	got, _ = CompositeScore(signals, map[string]float64{"a": 0.75, "b": 0.25})
	// 0.75 / (0.75 + 0.125)
	assert.InDelta(t, 0.857142857142857, got, 1e-12)
}

func TestCompositeScore_ZeroConfidenceHasNoInfluence(t *testing.T) {
	signals := sampleSignals()
	signals[ProviderSimSwap] = Signal{Name: ProviderSimSwap, Score: 0, Confidence: 0, Degraded: true}
	reference, ok := CompositeScore(signals, testWeights)
	require.True(t, ok)

	for s := 0.0; s <= 1.0; s += 0.05 {
		signals[ProviderSimSwap] = Signal{Name: ProviderSimSwap, Score: s, Confidence: 0, Degraded: true}
		got, ok := CompositeScore(signals, testWeights)
		require.True(t, ok)
		assert.Equal(t, reference, got, "score %.2f changed the composite", s)
	}
}

func TestCompositeScore_Monotonic(t *testing.T) {
	for _, name := range []string{ProviderPhoneCarrier, ProviderGeoIP, ProviderDevice, ProviderBehavioral, ProviderSimSwap} {
		signals := sampleSignals()
		prev := -1.0
		for s := 0.0; s <= 1.0001; s += 0.01 {
			sig := signals[name]
			sig.Score = s
			signals[name] = sig
			got, ok := CompositeScore(signals, testWeights)
			require.True(t, ok)
			assert.GreaterOrEqual(t, got, prev, "provider %s at %.2f", name, s)
			prev = got
		}
	}
}

func TestCompositeScore_AllDegraded(t *testing.T) {
	signals := map[string]Signal{
		ProviderGeoIP:  {Score: 0.5, Confidence: 0, Degraded: true},
		ProviderDevice: {Score: 0.5, Confidence: 0, Degraded: true},
	}
	_, ok := CompositeScore(signals, testWeights)
	assert.False(t, ok)

	_, ok = CompositeScore(map[string]Signal{}, testWeights)
	assert.False(t, ok)
}

func TestCompositeScore_IgnoresUnweightedSignals(t *testing.T) {
	signals := sampleSignals()
	base, _ := CompositeScore(signals, testWeights)

	signals["unknown"] = Signal{Score: 1, Confidence: 1}
	got, _ := CompositeScore(signals, testWeights)
	assert.Equal(t, base, got)
}

func TestCompositeScore_ClampsOutOfRangeInputs(t *testing.T) {
	got, ok := CompositeScore(map[string]Signal{"a": {Score: 3, Confidence: 7}}, map[string]float64{"a": 1})
	require.True(t, ok)
	assert.Equal(t, 1.0, got)
}
