package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RISK_SERVER_PORT
const EnvPrefix = "RISK"

// Load reads configuration from file and environment variables.
// A .env file in the working directory is loaded first when present.
func Load(configPath string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	v := viper.New()

	// Every key needs a default so AutomaticEnv can override it during Unmarshal
	setDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from path without overriding ones already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	// Server defaults
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.trust_proxy", cfg.Server.TrustProxy)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)

	// Database defaults
	v.SetDefault("database.enabled", cfg.Database.Enabled)
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.name", cfg.Database.Name)
	v.SetDefault("database.ssl_mode", cfg.Database.SSLMode)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", cfg.Database.ConnMaxLifetime)
	v.SetDefault("database.auto_migrate", cfg.Database.AutoMigrate)

	// Redis defaults
	v.SetDefault("redis.enabled", cfg.Redis.Enabled)
	v.SetDefault("redis.host", cfg.Redis.Host)
	v.SetDefault("redis.port", cfg.Redis.Port)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.pool_size", cfg.Redis.PoolSize)
	v.SetDefault("redis.read_timeout", cfg.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", cfg.Redis.WriteTimeout)
	v.SetDefault("redis.baseline_ttl", cfg.Redis.BaselineTTL)

	// Kafka defaults
	v.SetDefault("kafka.brokers", cfg.Kafka.Brokers)
	v.SetDefault("kafka.decisions_topic", cfg.Kafka.DecisionsTopic)
	v.SetDefault("kafka.batch_timeout", cfg.Kafka.BatchTimeout)
	v.SetDefault("kafka.write_timeout", cfg.Kafka.WriteTimeout)

	// Risk engine defaults
	v.SetDefault("risk.challenge_threshold", cfg.Risk.ChallengeThreshold)
	v.SetDefault("risk.block_threshold", cfg.Risk.BlockThreshold)
	v.SetDefault("risk.all_providers_down_default_score", cfg.Risk.AllProvidersDownDefaultScore)
	for name, p := range map[string]ProviderPolicyConfig{
		"phone_carrier": cfg.Risk.PhoneCarrier,
		"geo_ip":        cfg.Risk.GeoIP,
		"device":        cfg.Risk.Device,
		"behavioral":    cfg.Risk.Behavioral,
		"sim_swap":      cfg.Risk.SimSwap,
	} {
		v.SetDefault("risk."+name+".enabled", p.Enabled)
		v.SetDefault("risk."+name+".weight", p.Weight)
		v.SetDefault("risk."+name+".timeout", p.Timeout)
		v.SetDefault("risk."+name+".degraded_default_score", p.DegradedDefaultScore)
	}

	// Provider backend defaults
	v.SetDefault("providers.mock_mode", cfg.Providers.MockMode)
	v.SetDefault("providers.telecom.base_url", cfg.Providers.Telecom.BaseURL)
	v.SetDefault("providers.telecom.account_sid", cfg.Providers.Telecom.AccountSID)
	v.SetDefault("providers.telecom.auth_token", cfg.Providers.Telecom.AuthToken)
	v.SetDefault("providers.telecom.timeout", cfg.Providers.Telecom.Timeout)
	v.SetDefault("providers.telecom.retry_count", cfg.Providers.Telecom.RetryCount)
	v.SetDefault("providers.telecom.failure_threshold", cfg.Providers.Telecom.FailureThreshold)
	v.SetDefault("providers.telecom.open_timeout", cfg.Providers.Telecom.OpenTimeout)
	v.SetDefault("providers.phone.default_region", cfg.Providers.Phone.DefaultRegion)
	v.SetDefault("providers.phone.trusted_carriers", cfg.Providers.Phone.TrustedCarriers)
	v.SetDefault("providers.phone.voip_providers", cfg.Providers.Phone.VoIPProviders)
	v.SetDefault("providers.phone.recent_port_window", cfg.Providers.Phone.RecentPortWindow)
	v.SetDefault("providers.geoip.city_db_path", cfg.Providers.GeoIP.CityDBPath)
	v.SetDefault("providers.geoip.anonymous_db_path", cfg.Providers.GeoIP.AnonymousDBPath)
	v.SetDefault("providers.geoip.saturation_km", cfg.Providers.GeoIP.SaturationKm)
	v.SetDefault("providers.geoip.max_travel_speed_kmh", cfg.Providers.GeoIP.MaxTravelSpeedKmh)
	v.SetDefault("providers.geoip.high_risk_countries", cfg.Providers.GeoIP.HighRiskCountries)
	v.SetDefault("providers.sim_swap.recent_window", cfg.Providers.SimSwap.RecentWindow)
	v.SetDefault("providers.sim_swap.decay_window", cfg.Providers.SimSwap.DecayWindow)
	v.SetDefault("providers.device.neutral_score", cfg.Providers.Device.NeutralScore)

	// Rate limit, metrics and log defaults
	v.SetDefault("rate_limit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("rate_limit.rate", cfg.RateLimit.Rate)
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}
