// Package special rolls the shiny/toxic status assigned to a new game.
package special

import (
	"math/rand/v2"

	"github.com/victornm/etrivia/internal/config"
	"github.com/victornm/etrivia/internal/domain"
)

type Config struct {
	Settings *config.Settings

	// Float64 is overridable for deterministic draws in tests; defaults to
	// rand.Float64.
	Float64 func() float64
}

type Assigner struct {
	settings *config.Settings
	float64  func() float64
}

func NewAssigner(c Config) *Assigner {
	if c.Float64 == nil {
		c.Float64 = rand.Float64
	}
	return &Assigner{
		settings: c.Settings,
		float64:  c.Float64,
	}
}

// Assign draws shiny and toxic independently from the live probabilities.
// Shiny wins when both trigger. A probability of 0 disables that status.
func (a *Assigner) Assign() domain.Special {
	shiny := a.roll(a.settings.ShinyProbability())
	toxic := a.roll(a.settings.ToxicProbability())

	switch {
	case shiny:
		return domain.SpecialShiny
	case toxic:
		return domain.SpecialToxic
	default:
		return domain.SpecialNone
	}
}

func (a *Assigner) roll(p float64) bool {
	return p > 0 && a.float64() < p
}
