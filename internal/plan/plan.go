// Package plan declares the static subscription catalog. The behavioral knobs
// per tier are configuration, not user state: records store only plan codes.
package plan

import "time"

// Code identifies a subscription tier.
type Code string

const (
	Free    Code = "free"
	Basic   Code = "basic"
	Comfort Code = "comfort"
	Warm    Code = "warm"
)

// Best is the tier granted to permanently allow-listed users.
const Best = Warm

// Definition bundles the behavior knobs of one tier.
// SupportInterval == 0 disables unprompted supportive messages.
type Definition struct {
	HistoryLimit     int
	MaxTokens        int
	Temperature      float64
	PresencePenalty  float64
	FrequencyPenalty float64
	SupportInterval  time.Duration

	PriceRUB int
	Days     int
}

var catalog = map[Code]Definition{
	Free: {
		HistoryLimit: 8,
		MaxTokens:    240,
		Temperature:  0.55,
	},
	Basic: {
		HistoryLimit:    10,
		MaxTokens:       280,
		Temperature:     0.6,
		PresencePenalty: 0.1,
		PriceRUB:        299,
		Days:            7,
	},
	Comfort: {
		HistoryLimit:     14,
		MaxTokens:        340,
		Temperature:      0.64,
		PresencePenalty:  0.25,
		FrequencyPenalty: 0.05,
		SupportInterval:  48 * time.Hour,
		PriceRUB:         499,
		Days:             30,
	},
	Warm: {
		HistoryLimit:     18,
		MaxTokens:        420,
		Temperature:      0.68,
		PresencePenalty:  0.35,
		FrequencyPenalty: 0.1,
		SupportInterval:  24 * time.Hour,
		PriceRUB:         899,
		Days:             30,
	},
}

// paid lists purchasable tiers in display order.
var paid = []Code{Basic, Comfort, Warm}

// Behavior returns the definition for code, falling back to the free tier
// for unknown codes so a stale record can never crash plan resolution.
func Behavior(code Code) Definition {
	if def, ok := catalog[code]; ok {
		return def
	}
	return catalog[Free]
}

// Valid reports whether code names a known tier.
func Valid(code Code) bool {
	_, ok := catalog[code]
	return ok
}

// Paid returns the purchasable tiers in display order.
func Paid() []Code {
	out := make([]Code, len(paid))
	copy(out, paid)
	return out
}
