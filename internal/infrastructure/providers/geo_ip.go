package providers

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"login-risk-engine/internal/domain/risk"
	"login-risk-engine/internal/infrastructure/geoip"
)

// IPResolver resolves an IP address to location and anonymizer flags
type IPResolver interface {
	Resolve(ctx context.Context, ip string) (*geoip.Result, error)
}

// GeoIPConfig tunes the geo/IP provider
type GeoIPConfig struct {
	// Distance at which the distance component reaches half its maximum
	SaturationKm float64
	// Implied travel speed above which a location change is impossible
	MaxTravelSpeedKmh float64
	HighRiskCountries []string
}

// DefaultGeoIPConfig returns default geo settings
func DefaultGeoIPConfig() GeoIPConfig {
	return GeoIPConfig{
		SaturationKm:      1000,
		MaxTravelSpeedKmh: 900,
		HighRiskCountries: []string{"CN", "RU", "IR", "KP"},
	}
}

const (
	maxDistanceRisk     = 0.6
	locationChangeKm    = 100
	distantLocationKm   = 1000
	minTravelDistanceKm = 100
)

// GeoIPProvider scores distance from the last known location and anonymizing networks
type GeoIPProvider struct {
	resolver IPResolver
	cfg      GeoIPConfig
}

// NewGeoIPProvider creates the provider
func NewGeoIPProvider(resolver IPResolver, cfg GeoIPConfig) *GeoIPProvider {
	return &GeoIPProvider{resolver: resolver, cfg: cfg}
}

func (p *GeoIPProvider) Name() string { return risk.ProviderGeoIP }

func (p *GeoIPProvider) Applicable(a *risk.Attempt) bool {
	return strings.TrimSpace(a.ClientIP) != ""
}

// Evaluate never fabricates a location mismatch: without a baseline location
// the distance term is 0 and confidence drops to 0.5.
func (p *GeoIPProvider) Evaluate(ctx context.Context, a *risk.Attempt, baseline *risk.Baseline) (risk.Signal, error) {
	res, err := p.resolver.Resolve(ctx, a.ClientIP)
	if err != nil {
		return risk.Signal{}, fmt.Errorf("%w: ip lookup: %v", risk.ErrProviderError, err)
	}

	sig := risk.Signal{Name: p.Name(), Evidence: []string{}}
	if res.HasCoords {
		sig.Location = &risk.Location{
			Latitude:  res.Latitude,
			Longitude: res.Longitude,
			Country:   res.Country,
			City:      res.City,
		}
	}

	if res.IsTor {
		sig.Score = 1
		sig.Confidence = 1
		sig.Evidence = append(sig.Evidence, "tor_exit_node", risk.ForceBlockTag("tor_exit_node"))
		return sig, nil
	}

	var score ladder
	if res.IsVPN {
		score.add(0.3)
		sig.Evidence = append(sig.Evidence, "vpn")
	}
	if res.IsProxy {
		score.add(0.2)
		sig.Evidence = append(sig.Evidence, "proxy")
	}
	if res.IsHosting {
		score.add(0.1)
		sig.Evidence = append(sig.Evidence, "hosting_provider")
	}
	if slices.Contains(p.cfg.HighRiskCountries, res.Country) {
		score.add(0.2)
		sig.Evidence = append(sig.Evidence, "high_risk_country")
	}

	sig.Confidence = 0.5
	if baseline != nil && baseline.LastKnownLocation != nil && sig.Location != nil {
		sig.Confidence = 0.9
		d := Haversine(baseline.LastKnownLocation.Latitude, baseline.LastKnownLocation.Longitude, res.Latitude, res.Longitude)
		score.add(p.distanceRisk(d))
		if d > distantLocationKm {
			sig.Evidence = append(sig.Evidence, "distant_location")
		} else if d > locationChangeKm {
			sig.Evidence = append(sig.Evidence, "location_changed")
		}
		if p.impossibleTravel(d, baseline.LastSeenAt, a.ReceivedAt) {
			score.add(0.2)
			sig.Evidence = append(sig.Evidence, "impossible_travel")
		}
	}

	sig.Score = score.score()
	return sig, nil
}

// distanceRisk rises monotonically with distance and saturates at maxDistanceRisk
func (p *GeoIPProvider) distanceRisk(km float64) float64 {
	if km <= 0 {
		return 0
	}
	return maxDistanceRisk * km / (km + p.cfg.SaturationKm)
}

func (p *GeoIPProvider) impossibleTravel(km float64, lastSeen, now time.Time) bool {
	if km < minTravelDistanceKm || lastSeen.IsZero() || now.IsZero() || p.cfg.MaxTravelSpeedKmh <= 0 {
		return false
	}
	hours := now.Sub(lastSeen).Hours()
	if hours <= 0 {
		return true
	}
	return km/hours > p.cfg.MaxTravelSpeedKmh
}

// Haversine returns the great-circle distance in kilometres
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371.0

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
