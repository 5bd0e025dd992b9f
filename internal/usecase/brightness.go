package usecase

import (
	"math"

	"go.uber.org/zap"

	"github.com/quietloop/driftd/internal/domain"
)

// BrightnessForTime maps accumulated active time to a target brightness
// percentage. Two linear segments, then a clamped floor: start to At3Min
// over the first breakpoint window, At3Min to At10Min over the second,
// At10Min forever after. The result is rounded to an integer percent.
func BrightnessForTime(cfg domain.InterventionConfig, activeMs int64) int {
	minutes := float64(activeMs) / 60000.0
	b := cfg.Brightness
	t := cfg.Thresholds

	var value float64
	switch {
	case minutes <= 0:
		value = float64(b.Start)
	case minutes < t.Stage1To80End:
		value = lerp(float64(b.Start), float64(b.At3Min), minutes/t.Stage1To80End)
	case minutes < t.Stage1To50End:
		span := t.Stage1To50End - t.Stage1To80End
		value = lerp(float64(b.At3Min), float64(b.At10Min), (minutes-t.Stage1To80End)/span)
	default:
		value = float64(b.At10Min)
	}

	return int(math.Round(value))
}

// lerp interpolates between a and b; frac outside [0,1] is clamped.
func lerp(a, b, frac float64) float64 {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return a + (b-a)*frac
}

// BrightnessApplier pushes curve values to the page with the configured
// transition. State is written before the surface call so re-entrant
// reads always see what was requested.
type BrightnessApplier struct {
	state    *domain.BrightnessState
	surface  domain.EffectSurface
	settings domain.SettingsProvider
	logger   *zap.Logger
}

// NewBrightnessApplier creates an applier over the given surface.
func NewBrightnessApplier(
	state *domain.BrightnessState,
	surface domain.EffectSurface,
	settings domain.SettingsProvider,
	logger *zap.Logger,
) *BrightnessApplier {
	return &BrightnessApplier{
		state:    state,
		surface:  surface,
		settings: settings,
		logger:   logger,
	}
}

// ApplyForTime computes the curve value for activeMs and applies it.
func (a *BrightnessApplier) ApplyForTime(activeMs int64) {
	a.SetBrightness(BrightnessForTime(a.settings.Config(), activeMs))
}

// SetBrightness clamps to [0,100] and applies the value. Unchanged
// values are skipped so the page is not flooded with no-op transitions.
func (a *BrightnessApplier) SetBrightness(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	if percent == a.state.CurrentPercent {
		return
	}
	a.state.CurrentPercent = percent

	b := a.settings.Config().Brightness
	if err := a.surface.SetBrightness(percent, b.TransitionMs, b.Easing); err != nil {
		a.logger.Debug("brightness apply failed", zap.Error(err))
	}
}

// Current returns the last applied brightness percentage.
func (a *BrightnessApplier) Current() int {
	return a.state.CurrentPercent
}
