package providers

import (
	"context"
	"strings"

	"login-risk-engine/internal/domain/risk"
)

// DeviceProvider compares the attempt's fingerprint with the identity's trusted devices
type DeviceProvider struct {
	neutralScore float64
}

// NewDeviceProvider creates the provider. neutralScore is used for identities with no history.
func NewDeviceProvider(neutralScore float64) *DeviceProvider {
	return &DeviceProvider{neutralScore: neutralScore}
}

func (p *DeviceProvider) Name() string { return risk.ProviderDevice }

func (p *DeviceProvider) Applicable(a *risk.Attempt) bool {
	return strings.TrimSpace(a.DeviceFingerprint) != ""
}

func (p *DeviceProvider) Evaluate(ctx context.Context, a *risk.Attempt, baseline *risk.Baseline) (risk.Signal, error) {
	if err := ctx.Err(); err != nil {
		return risk.Signal{}, err
	}

	if baseline == nil || len(baseline.TrustedDevices) == 0 {
		return risk.Signal{
			Name:       p.Name(),
			Score:      p.neutralScore,
			Confidence: 0.5,
			Evidence:   []string{"first_seen_identity"},
		}, nil
	}

	var score ladder
	sig := risk.Signal{Name: p.Name(), Confidence: 0.9, Evidence: []string{}}
	if baseline.IsTrusted(a.DeviceFingerprint) {
		sig.Evidence = append(sig.Evidence, "trusted_device")
	} else {
		score.add(0.6)
		sig.Evidence = append(sig.Evidence, "new_device")
	}

	if a.DeviceClass != "" && baseline.LastKnownDeviceClass != "" &&
		!strings.EqualFold(a.DeviceClass, baseline.LastKnownDeviceClass) {
		score.add(0.25)
		sig.Evidence = append(sig.Evidence, "device_class_changed")
	}

	sig.Score = score.score()
	return sig, nil
}
