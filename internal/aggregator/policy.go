package aggregator

import (
	"unicode/utf8"

	"tripmind/internal/adapters/config"
)

// Policy holds the completeness thresholds. Lengths are counted in runes.
type Policy struct {
	MinFinalRunes   int
	MinFinalRatio   float64
	PartialBatch    int
	MinPartialRunes int
	ShortQueryRunes int
}

// DefaultPolicy returns the production thresholds
func DefaultPolicy() Policy {
	return Policy{
		MinFinalRunes:   100,
		MinFinalRatio:   0.9,
		PartialBatch:    3,
		MinPartialRunes: 5,
		ShortQueryRunes: 120,
	}
}

// PolicyFromConfig maps turn configuration onto a Policy
func PolicyFromConfig(cfg config.TurnConfig) Policy {
	return Policy{
		MinFinalRunes:   cfg.MinFinalRunes,
		MinFinalRatio:   cfg.MinFinalRatio,
		PartialBatch:    cfg.PartialBatch,
		MinPartialRunes: cfg.MinPartialRunes,
		ShortQueryRunes: cfg.ShortQueryRunes,
	}
}

// Acceptable reports whether final is complete relative to what was streamed
func (p Policy) Acceptable(final, accumulated string) bool {
	n := utf8.RuneCountInString(final)
	if n < p.MinFinalRunes {
		return false
	}
	return float64(n) >= p.MinFinalRatio*float64(utf8.RuneCountInString(accumulated))
}
