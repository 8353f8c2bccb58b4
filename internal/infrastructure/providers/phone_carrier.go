package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"login-risk-engine/internal/domain/risk"
	"login-risk-engine/internal/infrastructure/telecom"
)

// CarrierLookup resolves carrier and porting data for an E.164 number
type CarrierLookup interface {
	LookupCarrier(ctx context.Context, e164 string) (*telecom.CarrierInfo, error)
}

// PhoneCarrierConfig tunes the phone carrier provider
type PhoneCarrierConfig struct {
	DefaultRegion    string
	TrustedCarriers  []string
	VoIPProviders    []string
	RecentPortWindow time.Duration
}

// DefaultPhoneCarrierConfig returns the settings for Indian mobile numbers
func DefaultPhoneCarrierConfig() PhoneCarrierConfig {
	return PhoneCarrierConfig{
		DefaultRegion:    "IN",
		TrustedCarriers:  []string{"Jio", "Airtel", "VI", "Vodafone Idea", "BSNL", "MTNL"},
		VoIPProviders:    []string{"Skype", "WhatsApp", "Google Voice", "Truecaller"},
		RecentPortWindow: 30 * 24 * time.Hour,
	}
}

// PhoneCarrierProvider scores line type, carrier reputation and porting
type PhoneCarrierProvider struct {
	lookup CarrierLookup
	cfg    PhoneCarrierConfig
	now    func() time.Time
}

// NewPhoneCarrierProvider creates the provider
func NewPhoneCarrierProvider(lookup CarrierLookup, cfg PhoneCarrierConfig) *PhoneCarrierProvider {
	return &PhoneCarrierProvider{lookup: lookup, cfg: cfg, now: time.Now}
}

func (p *PhoneCarrierProvider) Name() string { return risk.ProviderPhoneCarrier }

func (p *PhoneCarrierProvider) Applicable(a *risk.Attempt) bool {
	return strings.TrimSpace(a.PhoneNumber) != ""
}

// Evaluate validates the number format first. An unparseable number is a
// definite high-risk signal, not a failed lookup.
func (p *PhoneCarrierProvider) Evaluate(ctx context.Context, a *risk.Attempt, _ *risk.Baseline) (risk.Signal, error) {
	num, e164, ok := parsePhone(a.PhoneNumber, p.cfg.DefaultRegion)
	if !ok {
		return invalidFormatSignal(p.Name()), nil
	}

	info, err := p.lookup.LookupCarrier(ctx, e164)
	if err != nil {
		return risk.Signal{}, fmt.Errorf("%w: carrier lookup: %v", risk.ErrProviderError, err)
	}
	if !info.Valid {
		return invalidFormatSignal(p.Name()), nil
	}

	var score ladder
	evidence := []string{}

	if info.LineType == telecom.LineTypeVoIP ||
		phonenumbers.GetNumberType(num) == phonenumbers.VOIP ||
		matchesAny(info.CarrierName, p.cfg.VoIPProviders) {
		score.add(0.4)
		evidence = append(evidence, "voip_line")
	}

	if !matchesAny(info.CarrierName, p.cfg.TrustedCarriers) {
		score.add(0.2)
		evidence = append(evidence, "unknown_carrier")
	}

	if info.Ported {
		if info.PortedAt != nil && p.now().Sub(*info.PortedAt) < p.cfg.RecentPortWindow {
			score.add(0.3)
			evidence = append(evidence, "recently_ported")
		} else {
			score.add(0.1)
			evidence = append(evidence, "ported")
		}
	}

	return risk.Signal{
		Name:       p.Name(),
		Score:      score.score(),
		Confidence: 0.9,
		Evidence:   evidence,
	}, nil
}

func invalidFormatSignal(name string) risk.Signal {
	return risk.Signal{
		Name:       name,
		Score:      1,
		Confidence: 1,
		Evidence:   []string{"invalid_format"},
	}
}

// parsePhone normalises a number to E.164 and reports whether it is valid
func parsePhone(raw, region string) (*phonenumbers.PhoneNumber, string, bool) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return nil, "", false
	}
	return num, phonenumbers.Format(num, phonenumbers.E164), true
}

// matchesAny compares carrier names case-insensitively, on whole words
func matchesAny(name string, candidates []string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	for _, c := range candidates {
		c = strings.ToLower(c)
		if n == c || strings.HasPrefix(n, c+" ") || strings.HasSuffix(n, " "+c) || strings.Contains(n, " "+c+" ") {
			return true
		}
	}
	return false
}
