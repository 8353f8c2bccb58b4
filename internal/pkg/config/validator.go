package config

import (
	"fmt"
	"strings"

	"login-risk-engine/internal/domain/risk"
)

// Validate validates the configuration. Engine rules are delegated to
// risk.EngineConfig so the service and the engine agree on them.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port %d", risk.ErrInvalidConfiguration, c.Server.Port)
	}

	if err := c.Risk.EngineConfig().Validate(); err != nil {
		return err
	}

	p := c.Providers
	if p.Device.NeutralScore < 0 || p.Device.NeutralScore > 1 {
		return fmt.Errorf("%w: providers.device.neutral_score must be between 0 and 1", risk.ErrInvalidConfiguration)
	}
	if p.SimSwap.DecayWindow <= 0 || p.SimSwap.RecentWindow < 0 || p.SimSwap.RecentWindow > p.SimSwap.DecayWindow {
		return fmt.Errorf("%w: providers.sim_swap windows must satisfy 0 <= recent_window <= decay_window", risk.ErrInvalidConfiguration)
	}
	if p.GeoIP.SaturationKm <= 0 {
		return fmt.Errorf("%w: providers.geoip.saturation_km must be positive", risk.ErrInvalidConfiguration)
	}
	if strings.TrimSpace(p.Phone.DefaultRegion) == "" {
		return fmt.Errorf("%w: providers.phone.default_region is required", risk.ErrInvalidConfiguration)
	}

	if !p.MockMode {
		if c.Risk.PhoneCarrier.Enabled || c.Risk.SimSwap.Enabled {
			if p.Telecom.BaseURL == "" {
				return fmt.Errorf("%w: providers.telecom.base_url is required outside mock mode", risk.ErrInvalidConfiguration)
			}
		}
		if c.Risk.GeoIP.Enabled && p.GeoIP.CityDBPath == "" {
			return fmt.Errorf("%w: providers.geoip.city_db_path is required outside mock mode", risk.ErrInvalidConfiguration)
		}
	}

	if c.RateLimit.Enabled && c.RateLimit.Rate == "" {
		return fmt.Errorf("%w: rate_limit.rate is required when rate limiting is enabled", risk.ErrInvalidConfiguration)
	}

	return nil
}
