package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"login-risk-engine/internal/domain/risk"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	engine := cfg.Risk.EngineConfig()
	assert.Equal(t, 0.4, engine.Thresholds.Challenge)
	assert.Equal(t, 0.8, engine.Thresholds.Block)
	assert.Len(t, engine.Weights(), 5)
	assert.Equal(t, 800*time.Millisecond, engine.Deadline())
	assert.False(t, cfg.Server.TrustProxy)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
risk:
  block_threshold: 0.9
  behavioral:
    enabled: false
    weight: 0
  phone_carrier:
    weight: 0.40
providers:
  mock_mode: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("RISK_SERVER_PORT", "9090")
	t.Setenv("RISK_RISK_DEVICE_TIMEOUT", "250ms")
	t.Setenv("RISK_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("RISK_LOG_LEVEL", "debug")
	t.Setenv("RISK_SERVER_TRUST_PROXY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.TrustProxy)
	assert.Equal(t, 0.9, cfg.Risk.BlockThreshold)
	assert.Equal(t, 0.4, cfg.Risk.ChallengeThreshold)
	assert.False(t, cfg.Risk.Behavioral.Enabled)
	assert.Equal(t, 0.40, cfg.Risk.PhoneCarrier.Weight)
	assert.Equal(t, 250*time.Millisecond, cfg.Risk.Device.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "IN", cfg.Providers.Phone.DefaultRegion)

	require.NoError(t, cfg.Validate())
	_, behavioral := cfg.Risk.EngineConfig().Weights()[risk.ProviderBehavioral]
	assert.False(t, behavioral)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"thresholds inverted", func(c *Config) { c.Risk.ChallengeThreshold = 0.9 }},
		{"block above one", func(c *Config) { c.Risk.BlockThreshold = 1.2 }},
		{"weights do not sum to one", func(c *Config) { c.Risk.GeoIP.Weight = 0.5 }},
		{"degraded score at zero", func(c *Config) { c.Risk.Device.DegradedDefaultScore = 0 }},
		{"degraded score at one", func(c *Config) { c.Risk.SimSwap.DegradedDefaultScore = 1 }},
		{"zero timeout", func(c *Config) { c.Risk.PhoneCarrier.Timeout = 0 }},
		{"all down score", func(c *Config) { c.Risk.AllProvidersDownDefaultScore = 1.5 }},
		{"neutral device score", func(c *Config) { c.Providers.Device.NeutralScore = -0.1 }},
		{"sim swap windows", func(c *Config) { c.Providers.SimSwap.RecentWindow = 60 * 24 * time.Hour }},
		{"telecom url outside mock mode", func(c *Config) { c.Providers.MockMode = false }},
		{"rate limit without rate", func(c *Config) { c.RateLimit.Rate = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, risk.ErrInvalidConfiguration)
		})
	}
}

func TestValidate_RealBackends(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.MockMode = false
	cfg.Providers.Telecom.BaseURL = "https://lookups.example.com"
	assert.NoError(t, cfg.Validate())
}
