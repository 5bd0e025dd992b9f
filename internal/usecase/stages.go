package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/quietloop/driftd/internal/domain"
)

// StageEngine maps accumulated active time to discrete intervention
// stages. Transitions are forward-only and debounced; brightness is
// continuous and updated on every pass regardless of debounce.
// Overrides (focus mode, snooze) suppress visual effects immediately,
// bypassing debounce, without touching the underlying accounting.
type StageEngine struct {
	state      *domain.DistractionState
	settings   domain.SettingsProvider
	monitor    *ActivityMonitor
	brightness *BrightnessApplier
	effects    *EffectsApplier
	logger     *zap.Logger

	snoozeUntil  time.Time
	focusSession bool
	suppressed   bool
}

// NewStageEngine wires the engine to the shared page state.
func NewStageEngine(
	state *domain.DistractionState,
	settings domain.SettingsProvider,
	monitor *ActivityMonitor,
	brightness *BrightnessApplier,
	effects *EffectsApplier,
	logger *zap.Logger,
) *StageEngine {
	return &StageEngine{
		state:      state,
		settings:   settings,
		monitor:    monitor,
		brightness: brightness,
		effects:    effects,
		logger:     logger,
	}
}

// TargetStageFor returns the stage the thresholds demand for activeMs.
// The highest met threshold wins. Zero accumulated time is always stage
// 0, even with a zero-minute stage 1 breakpoint, so a fresh page never
// opens dimmed.
func TargetStageFor(cfg domain.InterventionConfig, activeMs int64) domain.Stage {
	if activeMs <= 0 {
		return domain.StageNone
	}
	minutes := float64(activeMs) / 60000.0
	t := cfg.Thresholds

	switch {
	case minutes >= t.Stage4Start:
		return domain.StageLockout
	case minutes >= t.Stage3Start:
		return domain.StageNudge
	case minutes >= t.Stage2Start:
		return domain.StageBlur
	case minutes >= t.Stage1Start:
		return domain.StageDim
	default:
		return domain.StageNone
	}
}

// Evaluate runs one evaluation pass. force bypasses the debounce gate;
// it is used on restore and on explicit re-evaluation after resets.
func (e *StageEngine) Evaluate(now time.Time, force bool) {
	cfg := e.settings.Config()

	// Override guards come first and bypass debounce: suppression is
	// immediate, and the debounce clock is not advanced, so the next
	// organic transition is not penalized.
	if e.overridden(now) {
		if !e.suppressed {
			e.logger.Info("interventions suppressed by override",
				zap.Bool("focus_mode", e.focusActive()),
				zap.Time("snooze_until", e.snoozeUntil))
			e.effects.ClearIntervention()
			e.brightness.SetBrightness(cfg.Brightness.Start)
			e.suppressed = true
		}
		return
	}

	if e.suppressed {
		// Override just lifted: resume the remembered stage directly.
		e.suppressed = false
		if e.state.Stage > domain.StageNone {
			e.effects.ApplyStage(e.state.Stage, e.Stats())
		}
	}

	// Brightness is continuous and never debounced.
	e.brightness.ApplyForTime(e.state.ActiveMs)

	target := TargetStageFor(cfg, e.state.ActiveMs)

	if target == e.state.Stage {
		e.effects.RefreshOverlay(e.state.Stage, e.Stats())
		return
	}

	// Forward-only: downgrades happen only through explicit resets.
	if target < e.state.Stage {
		return
	}

	if !force && !e.state.LastStageChangeAt.IsZero() &&
		now.Sub(e.state.LastStageChangeAt) < time.Duration(cfg.DebounceMs)*time.Millisecond {
		return
	}

	prev := e.state.Stage
	e.state.Stage = target
	e.state.LastStageChangeAt = now
	e.effects.ApplyStage(target, e.Stats())

	e.logger.Info("stage transition",
		zap.Stringer("from", prev),
		zap.Stringer("to", target),
		zap.Int64("active_ms", e.state.ActiveMs),
		zap.Bool("forced", force))
}

func (e *StageEngine) focusActive() bool {
	return e.focusSession || e.settings.FocusMode()
}

func (e *StageEngine) overridden(now time.Time) bool {
	return e.focusActive() || e.snoozeUntil.After(now)
}

// Snooze dismisses the current intervention and suspends new ones for
// the configured snooze window. Takes effect on this call, not on the
// next tick.
func (e *StageEngine) Snooze(now time.Time) {
	minutes := e.settings.Config().SnoozeMinutes
	e.snoozeUntil = now.Add(time.Duration(minutes * float64(time.Minute)))
	e.logger.Info("snoozed", zap.Time("until", e.snoozeUntil))
	e.Evaluate(now, false)
}

// StartFocusSession enters a session-local focus override, suppressing
// further stages until EndFocusSession.
func (e *StageEngine) StartFocusSession(now time.Time) {
	e.focusSession = true
	e.logger.Info("focus session started")
	e.Evaluate(now, false)
}

// EndFocusSession lifts the session-local focus override.
func (e *StageEngine) EndFocusSession(now time.Time) {
	e.focusSession = false
	e.Evaluate(now, false)
}

// ClearIntervention removes all visual effects. With reset true the
// stage bookkeeping is also zeroed (new day, detach); otherwise the
// stage is remembered so a lifted override resumes where it left off.
func (e *StageEngine) ClearIntervention(reset bool) {
	e.effects.ClearIntervention()
	if reset {
		e.state.Stage = domain.StageNone
		e.state.LastStageChangeAt = time.Time{}
		e.brightness.SetBrightness(e.settings.Config().Brightness.Start)
	}
}

// Stage returns the current discrete stage.
func (e *StageEngine) Stage() domain.Stage {
	return e.state.Stage
}

// Suppressed reports whether an override is currently hiding effects.
func (e *StageEngine) Suppressed() bool {
	return e.suppressed
}

// Stats builds the live behavioral summary the overlay renders.
func (e *StageEngine) Stats() domain.OverlayStats {
	return domain.OverlayStats{
		ActiveSeconds: int(e.state.ActiveMs / 1000),
		ScrollScreens: e.monitor.ScrollScreens(),
		Stage:         e.state.Stage,
	}
}
