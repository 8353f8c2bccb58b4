package risk

import (
	"math"
	"sort"
	"time"
)

const weightSumTolerance = 1e-6

// Thresholds are the score cut-offs of the decision policy
type Thresholds struct {
	Challenge float64 `json:"challengeThreshold"`
	Block     float64 `json:"blockThreshold"`
}

// Validate enforces 0 <= challenge < block <= 1
func (t Thresholds) Validate() error {
	if math.IsNaN(t.Challenge) || math.IsNaN(t.Block) {
		return invalidConfig("thresholds must be numbers")
	}
	if t.Challenge < 0 {
		return invalidConfig("challenge_threshold %.4f is below 0", t.Challenge)
	}
	if t.Block > 1 {
		return invalidConfig("block_threshold %.4f is above 1", t.Block)
	}
	if t.Challenge >= t.Block {
		return invalidConfig("challenge_threshold %.4f must be less than block_threshold %.4f", t.Challenge, t.Block)
	}
	return nil
}

// ProviderPolicy is the per-provider part of the engine configuration
type ProviderPolicy struct {
	Enabled              bool
	Weight               float64
	Timeout              time.Duration
	DegradedDefaultScore float64
}

// EngineConfig is loaded at startup and immutable afterwards
type EngineConfig struct {
	Thresholds                   Thresholds
	AllProvidersDownDefaultScore float64
	Providers                    map[string]ProviderPolicy
}

// Validate fails on anything the engine would otherwise have to clamp
func (c EngineConfig) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if !inUnit(c.AllProvidersDownDefaultScore) {
		return invalidConfig("all_providers_down_default_score %.4f must be within [0,1]", c.AllProvidersDownDefaultScore)
	}

	var sum float64
	enabled := 0
	for _, name := range c.ProviderNames() {
		p := c.Providers[name]
		if !inUnit(p.Weight) {
			return invalidConfig("provider %s: weight %.4f must be within [0,1]", name, p.Weight)
		}
		if !p.Enabled {
			continue
		}
		if p.Timeout <= 0 {
			return invalidConfig("provider %s: timeout must be positive", name)
		}
		if !(p.DegradedDefaultScore > 0 && p.DegradedDefaultScore < 1) {
			return invalidConfig("provider %s: degraded_default_score %.4f must be strictly between 0 and 1", name, p.DegradedDefaultScore)
		}
		sum += p.Weight
		enabled++
	}
	if enabled == 0 {
		return invalidConfig("at least one provider must be enabled")
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return invalidConfig("weights of enabled providers sum to %.6f, want 1", sum)
	}
	return nil
}

// ProviderNames returns configured provider names in a stable order
func (c EngineConfig) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Policy returns the policy for a provider
func (c EngineConfig) Policy(name string) (ProviderPolicy, bool) {
	p, ok := c.Providers[name]
	return p, ok
}

// Weights returns the weights of enabled providers
func (c EngineConfig) Weights() map[string]float64 {
	w := make(map[string]float64, len(c.Providers))
	for name, p := range c.Providers {
		if p.Enabled {
			w[name] = p.Weight
		}
	}
	return w
}

// Deadline is the longest per-provider timeout among enabled providers
func (c EngineConfig) Deadline() time.Duration {
	var d time.Duration
	for _, p := range c.Providers {
		if p.Enabled && p.Timeout > d {
			d = p.Timeout
		}
	}
	return d
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
