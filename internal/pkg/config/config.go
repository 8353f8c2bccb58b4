package config

import (
	"time"

	"login-risk-engine/internal/domain/risk"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Providers ProvidersConfig `mapstructure:"providers"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// TrustProxy honours X-Forwarded-For / X-Real-IP for the caller address
	TrustProxy     bool     `mapstructure:"trust_proxy"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL configuration for the attempt ledger
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds Redis configuration for identity baselines
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BaselineTTL  time.Duration `mapstructure:"baseline_ttl"`
}

// KafkaConfig holds Kafka configuration. No brokers disables publishing.
type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	DecisionsTopic string        `mapstructure:"decisions_topic"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// ProviderPolicyConfig is the engine policy of one signal provider
type ProviderPolicyConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	Weight               float64       `mapstructure:"weight"`
	Timeout              time.Duration `mapstructure:"timeout"`
	DegradedDefaultScore float64       `mapstructure:"degraded_default_score"`
}

// RiskConfig holds the scoring engine configuration
type RiskConfig struct {
	ChallengeThreshold           float64 `mapstructure:"challenge_threshold"`
	BlockThreshold               float64 `mapstructure:"block_threshold"`
	AllProvidersDownDefaultScore float64 `mapstructure:"all_providers_down_default_score"`

	PhoneCarrier ProviderPolicyConfig `mapstructure:"phone_carrier"`
	GeoIP        ProviderPolicyConfig `mapstructure:"geo_ip"`
	Device       ProviderPolicyConfig `mapstructure:"device"`
	Behavioral   ProviderPolicyConfig `mapstructure:"behavioral"`
	SimSwap      ProviderPolicyConfig `mapstructure:"sim_swap"`
}

func (p ProviderPolicyConfig) policy() risk.ProviderPolicy {
	return risk.ProviderPolicy{
		Enabled:              p.Enabled,
		Weight:               p.Weight,
		Timeout:              p.Timeout,
		DegradedDefaultScore: p.DegradedDefaultScore,
	}
}

// EngineConfig converts the section into the engine's immutable configuration
func (c RiskConfig) EngineConfig() risk.EngineConfig {
	return risk.EngineConfig{
		Thresholds: risk.Thresholds{
			Challenge: c.ChallengeThreshold,
			Block:     c.BlockThreshold,
		},
		AllProvidersDownDefaultScore: c.AllProvidersDownDefaultScore,
		Providers: map[string]risk.ProviderPolicy{
			risk.ProviderPhoneCarrier: c.PhoneCarrier.policy(),
			risk.ProviderGeoIP:        c.GeoIP.policy(),
			risk.ProviderDevice:       c.Device.policy(),
			risk.ProviderBehavioral:   c.Behavioral.policy(),
			risk.ProviderSimSwap:      c.SimSwap.policy(),
		},
	}
}

// ProvidersConfig holds the provider backends
type ProvidersConfig struct {
	// MockMode serves fixed demo scenarios instead of calling real backends
	MockMode bool          `mapstructure:"mock_mode"`
	Telecom  TelecomConfig `mapstructure:"telecom"`
	Phone    PhoneConfig   `mapstructure:"phone"`
	GeoIP    GeoIPConfig   `mapstructure:"geoip"`
	SimSwap  SimSwapConfig `mapstructure:"sim_swap"`
	Device   DeviceConfig  `mapstructure:"device"`
}

// TelecomConfig holds the carrier lookup API settings
type TelecomConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	AccountSID       string        `mapstructure:"account_sid"`
	AuthToken        string        `mapstructure:"auth_token"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RetryCount       int           `mapstructure:"retry_count"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

// PhoneConfig tunes the phone carrier provider
type PhoneConfig struct {
	DefaultRegion    string        `mapstructure:"default_region"`
	TrustedCarriers  []string      `mapstructure:"trusted_carriers"`
	VoIPProviders    []string      `mapstructure:"voip_providers"`
	RecentPortWindow time.Duration `mapstructure:"recent_port_window"`
}

// GeoIPConfig tunes the geo/IP provider
type GeoIPConfig struct {
	CityDBPath        string   `mapstructure:"city_db_path"`
	AnonymousDBPath   string   `mapstructure:"anonymous_db_path"`
	SaturationKm      float64  `mapstructure:"saturation_km"`
	MaxTravelSpeedKmh float64  `mapstructure:"max_travel_speed_kmh"`
	HighRiskCountries []string `mapstructure:"high_risk_countries"`
}

// SimSwapConfig tunes the SIM swap provider
type SimSwapConfig struct {
	RecentWindow time.Duration `mapstructure:"recent_window"`
	DecayWindow  time.Duration `mapstructure:"decay_window"`
}

// DeviceConfig tunes the device provider
type DeviceConfig struct {
	NeutralScore float64 `mapstructure:"neutral_score"`
}

// RateLimitConfig limits /risk/assess per client IP. Rate uses the "<limit>-<period>" format, e.g. "100-M".
type RateLimitConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Rate    string `mapstructure:"rate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            5432,
			User:            "risk_user",
			Password:        "",
			Name:            "login_risk",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         6379,
			Password:     "",
			DB:           0,
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			BaselineTTL:  0,
		},
		Kafka: KafkaConfig{
			Brokers:        []string{},
			DecisionsTopic: "login-risk-events",
			BatchTimeout:   10 * time.Millisecond,
			WriteTimeout:   2 * time.Second,
		},
		Risk: RiskConfig{
			ChallengeThreshold:           0.40,
			BlockThreshold:               0.80,
			AllProvidersDownDefaultScore: 0.50,
			PhoneCarrier:                 ProviderPolicyConfig{Enabled: true, Weight: 0.25, Timeout: 800 * time.Millisecond, DegradedDefaultScore: 0.5},
			GeoIP:                        ProviderPolicyConfig{Enabled: true, Weight: 0.25, Timeout: 500 * time.Millisecond, DegradedDefaultScore: 0.5},
			Device:                       ProviderPolicyConfig{Enabled: true, Weight: 0.20, Timeout: 100 * time.Millisecond, DegradedDefaultScore: 0.5},
			Behavioral:                   ProviderPolicyConfig{Enabled: true, Weight: 0.15, Timeout: 100 * time.Millisecond, DegradedDefaultScore: 0.5},
			SimSwap:                      ProviderPolicyConfig{Enabled: true, Weight: 0.15, Timeout: 800 * time.Millisecond, DegradedDefaultScore: 0.5},
		},
		Providers: ProvidersConfig{
			MockMode: true,
			Telecom: TelecomConfig{
				Timeout:          700 * time.Millisecond,
				RetryCount:       1,
				FailureThreshold: 5,
				OpenTimeout:      30 * time.Second,
			},
			Phone: PhoneConfig{
				DefaultRegion:    "IN",
				TrustedCarriers:  []string{"Jio", "Airtel", "VI", "Vodafone Idea", "BSNL", "MTNL"},
				VoIPProviders:    []string{"Skype", "WhatsApp", "Google Voice", "Truecaller"},
				RecentPortWindow: 30 * 24 * time.Hour,
			},
			GeoIP: GeoIPConfig{
				CityDBPath:        "./data/GeoLite2-City.mmdb",
				AnonymousDBPath:   "",
				SaturationKm:      1000,
				MaxTravelSpeedKmh: 900,
				HighRiskCountries: []string{"CN", "RU", "IR", "KP"},
			},
			SimSwap: SimSwapConfig{
				RecentWindow: 7 * 24 * time.Hour,
				DecayWindow:  30 * 24 * time.Hour,
			},
			Device: DeviceConfig{
				NeutralScore: 0.5,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    "300-M",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
