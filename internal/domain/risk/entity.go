package risk

import (
	"sort"
	"strings"
	"time"
)

// Decision is the action the login flow takes for an attempt
type Decision string

const (
	DecisionAllow        Decision = "ALLOW"
	DecisionChallengeOTP Decision = "CHALLENGE_OTP"
	DecisionBlock        Decision = "BLOCK"
)

// Severity orders decisions so that BLOCK > CHALLENGE_OTP > ALLOW
func (d Decision) Severity() int {
	switch d {
	case DecisionBlock:
		return 2
	case DecisionChallengeOTP:
		return 1
	default:
		return 0
	}
}

// Provider names
const (
	ProviderPhoneCarrier = "phone_carrier"
	ProviderGeoIP        = "geo_ip"
	ProviderDevice       = "device"
	ProviderBehavioral   = "behavioral"
	ProviderSimSwap      = "sim_swap"
)

// OverrideAllSignalsUnavailable marks an assessment where no provider could be evaluated
const OverrideAllSignalsUnavailable = "all_signals_unavailable"

// ForceBlockPrefix tags evidence that forces a BLOCK regardless of score
const ForceBlockPrefix = "force_block:"

// ForceBlockTag builds a kill-switch evidence tag, e.g. "force_block:tor_exit_node"
func ForceBlockTag(reason string) string {
	return ForceBlockPrefix + reason
}

// IsForceBlock reports whether an evidence entry is a kill-switch tag
func IsForceBlock(evidence string) bool {
	return strings.HasPrefix(evidence, ForceBlockPrefix)
}

// Location is a resolved geographic position
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country,omitempty"`
	City      string  `json:"city,omitempty"`
}

// Signal is one provider's opinion about one attempt.
// Score and Confidence are both in [0,1]; Confidence 0 means the provider
// could not evaluate the attempt.
type Signal struct {
	Name       string    `json:"name"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	Evidence   []string  `json:"evidence"`
	Degraded   bool      `json:"degraded"`
	LatencyMs  int64     `json:"latencyMs"`
	Error      string    `json:"error,omitempty"`
	Location   *Location `json:"location,omitempty"`
}

// ForceBlockEvidence returns the first kill-switch tag carried by the signal
func (s Signal) ForceBlockEvidence() (string, bool) {
	for _, e := range s.Evidence {
		if IsForceBlock(e) {
			return e, true
		}
	}
	return "", false
}

// RiskAssessment is the aggregate outcome for one attempt. It is immutable once built.
type RiskAssessment struct {
	AttemptID      string            `json:"attemptId"`
	Signals        map[string]Signal `json:"signals"`
	CompositeScore float64           `json:"compositeScore"`
	Decision       Decision          `json:"decision"`
	OverrideReason string            `json:"overrideReason,omitempty"`
	ComputedAt     time.Time         `json:"computedAt"`
}

// AllSignalsUnavailable reports whether every applicable provider degraded
func (a *RiskAssessment) AllSignalsUnavailable() bool {
	return a.OverrideReason == OverrideAllSignalsUnavailable
}

// SignalNames returns provider names in a stable order
func (a *RiskAssessment) SignalNames() []string {
	names := make([]string, 0, len(a.Signals))
	for name := range a.Signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeystrokeSample is one timed key press, in epoch milliseconds
type KeystrokeSample struct {
	Key        string `json:"key"`
	PressedAt  int64  `json:"pressedAt"`
	ReleasedAt int64  `json:"releasedAt"`
}

// Attempt is the context of a single login attempt
type Attempt struct {
	IdentityKey       string
	PhoneNumber       string
	DeviceFingerprint string
	DeviceClass       string
	ClientIP          string
	TypingSamples     []KeystrokeSample
	ReceivedAt        time.Time
}

// Validate rejects attempts missing the required top-level fields
func (a *Attempt) Validate() error {
	if strings.TrimSpace(a.IdentityKey) == "" {
		return wrapMalformed("identityKey is required")
	}
	if strings.TrimSpace(a.ClientIP) == "" {
		return wrapMalformed("clientIp is required")
	}
	return nil
}

// Baseline holds the last known-good context for an identity
type Baseline struct {
	IdentityKey                string    `json:"identityKey"`
	LastKnownLocation          *Location `json:"lastKnownLocation,omitempty"`
	LastKnownDeviceFingerprint string    `json:"lastKnownDeviceFingerprint,omitempty"`
	LastKnownDeviceClass       string    `json:"lastKnownDeviceClass,omitempty"`
	LastSeenAt                 time.Time `json:"lastSeenAt"`
	TrustedDevices             []string  `json:"trustedDevices"`
	Version                    int64     `json:"version"`
}

// IsTrusted reports whether a fingerprint is in the trusted device set
func (b *Baseline) IsTrusted(fingerprint string) bool {
	if b == nil || fingerprint == "" {
		return false
	}
	i := sort.SearchStrings(b.TrustedDevices, fingerprint)
	return i < len(b.TrustedDevices) && b.TrustedDevices[i] == fingerprint
}

// Clone returns a deep copy
func (b *Baseline) Clone() *Baseline {
	if b == nil {
		return nil
	}
	c := *b
	if b.LastKnownLocation != nil {
		loc := *b.LastKnownLocation
		c.LastKnownLocation = &loc
	}
	c.TrustedDevices = append([]string(nil), b.TrustedDevices...)
	return &c
}

// Observation is what an ALLOW decision contributes to the identity baseline
type Observation struct {
	DeviceFingerprint string
	DeviceClass       string
	Location          *Location
	SeenAt            time.Time
}

// Apply merges an observation into the baseline.
// Trusted devices only grow and the trusted set stays sorted.
func (b *Baseline) Apply(obs Observation) {
	if obs.DeviceFingerprint != "" {
		if !b.IsTrusted(obs.DeviceFingerprint) {
			b.TrustedDevices = append(b.TrustedDevices, obs.DeviceFingerprint)
			sort.Strings(b.TrustedDevices)
		}
		if !obs.SeenAt.Before(b.LastSeenAt) {
			b.LastKnownDeviceFingerprint = obs.DeviceFingerprint
		}
	}
	if obs.DeviceClass != "" && !obs.SeenAt.Before(b.LastSeenAt) {
		b.LastKnownDeviceClass = obs.DeviceClass
	}
	if obs.Location != nil && !obs.SeenAt.Before(b.LastSeenAt) {
		loc := *obs.Location
		b.LastKnownLocation = &loc
	}
	if obs.SeenAt.After(b.LastSeenAt) {
		b.LastSeenAt = obs.SeenAt
	}
	b.Version++
}

// Outcome is what the user actually experienced after the decision
type Outcome string

const (
	OutcomeLoggedIn     Outcome = "logged_in"
	OutcomeBlocked      Outcome = "blocked"
	OutcomeOTPPending   Outcome = "otp_pending"
	OutcomeOTPPassed    Outcome = "otp_passed"
	OutcomeOTPFailed    Outcome = "otp_failed"
	OutcomeOTPAbandoned Outcome = "otp_abandoned"
)

// IsOTPResolution reports whether the outcome closes a pending OTP challenge
func (o Outcome) IsOTPResolution() bool {
	switch o {
	case OutcomeOTPPassed, OutcomeOTPFailed, OutcomeOTPAbandoned:
		return true
	}
	return false
}

// InitialOutcome is the outcome recorded alongside a fresh decision
func InitialOutcome(d Decision) Outcome {
	switch d {
	case DecisionBlock:
		return OutcomeBlocked
	case DecisionChallengeOTP:
		return OutcomeOTPPending
	default:
		return OutcomeLoggedIn
	}
}

// AttemptRecord is an append-only ledger entry.
// FinalOutcome and OutcomeAt are the only fields written after creation.
type AttemptRecord struct {
	AttemptID    string          `json:"attemptId"`
	IdentityKey  string          `json:"identityKey"`
	Sequence     int64           `json:"sequence"`
	Assessment   *RiskAssessment `json:"assessment"`
	FinalOutcome Outcome         `json:"finalOutcome"`
	RecordedAt   time.Time       `json:"recordedAt"`
	OutcomeAt    *time.Time      `json:"outcomeAt,omitempty"`
}
