package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quietloop/driftd/internal/domain"
)

// CSS class names the content script styles.
const (
	ClassDim   = "driftd-dim"
	ClassShake = "driftd-shake"
)

// shakeDuration is how long the one-shot shake class stays on the body.
const shakeDuration = 1500 * time.Millisecond

// EffectsApplier owns the DOM side effects for each stage. Every apply
// and remove is idempotent: applying twice produces the same page state
// as applying once, removing something absent is a no-op. Surface
// errors are logged per call and never abort a pass, since the page can
// mutate underneath us at any time.
type EffectsApplier struct {
	surface  domain.EffectSurface
	settings domain.SettingsProvider
	logger   *zap.Logger

	dimApplied   bool
	blurApplied  bool
	overlayShown bool
	scrollLocked bool
	shakeFired   bool
	lastStats    domain.OverlayStats

	// The shake removal timer fires off the session goroutine, so the
	// handle itself needs a lock; it touches nothing but the surface.
	shakeMu    sync.Mutex
	shakeTimer *time.Timer
}

// NewEffectsApplier creates an applier over the given surface.
func NewEffectsApplier(surface domain.EffectSurface, settings domain.SettingsProvider, logger *zap.Logger) *EffectsApplier {
	return &EffectsApplier{
		surface:  surface,
		settings: settings,
		logger:   logger,
	}
}

// ApplyStage brings the page to the visual state for stage. Effects are
// cumulative: stage 3 implies dim and blur, stage 4 adds the lockout or
// final nudge depending on the configured mode.
func (e *EffectsApplier) ApplyStage(stage domain.Stage, stats domain.OverlayStats) {
	if stage >= domain.StageDim {
		e.applyDim()
	}
	if stage >= domain.StageBlur {
		e.applyBlur()
		e.triggerShake()
	}
	if stage >= domain.StageNudge {
		e.showOverlay(overlayFor(stage, e.settings.Config().Mode, stats))
	}
	if stage >= domain.StageLockout && e.settings.Config().Mode == domain.ModeStrict {
		e.lockScroll()
	}
}

func overlayFor(stage domain.Stage, mode domain.Mode, stats domain.OverlayStats) domain.OverlayContent {
	switch {
	case stage >= domain.StageLockout && mode == domain.ModeStrict:
		return domain.OverlayContent{
			Variant: domain.OverlayBreathing,
			Message: "Scrolling is paused. Take three slow breaths before continuing.",
			Stats:   stats,
		}
	case stage >= domain.StageLockout:
		return domain.OverlayContent{
			Variant: domain.OverlayFinal,
			Message: "You've been here a long time. This is a good moment to stop.",
			Stats:   stats,
		}
	default:
		return domain.OverlayContent{
			Variant: domain.OverlayNudge,
			Message: "You've been scrolling for a while. Keep going, or take a break?",
			Stats:   stats,
		}
	}
}

func (e *EffectsApplier) applyDim() {
	if e.dimApplied {
		return
	}
	if err := e.surface.AddBodyClass(ClassDim); err != nil {
		e.logger.Debug("dim class apply failed", zap.Error(err))
		return
	}
	e.dimApplied = true
}

func (e *EffectsApplier) removeDim() {
	if !e.dimApplied {
		return
	}
	if err := e.surface.RemoveBodyClass(ClassDim); err != nil {
		e.logger.Debug("dim class remove failed", zap.Error(err))
	}
	e.dimApplied = false
}

// applyBlur blurs content elements at the configured radius, capped at
// the configured maximum.
func (e *EffectsApplier) applyBlur() {
	if e.blurApplied {
		return
	}
	blur := e.settings.Config().Blur
	px := blur.Stage2Px
	if px > blur.MaxPx {
		px = blur.MaxPx
	}
	if err := e.surface.ApplyBlur(px, blur.TransitionMs); err != nil {
		e.logger.Debug("blur apply failed", zap.Error(err))
		return
	}
	e.blurApplied = true
}

func (e *EffectsApplier) clearBlur() {
	if !e.blurApplied {
		return
	}
	if err := e.surface.ClearBlur(); err != nil {
		e.logger.Debug("blur clear failed", zap.Error(err))
	}
	e.blurApplied = false
}

// triggerShake plays the gentle shake animation once per intervention
// episode. The removal is a cancellable timer owned by this applier so
// Destroy can guarantee no dangling callback.
func (e *EffectsApplier) triggerShake() {
	if e.shakeFired {
		return
	}
	e.shakeFired = true

	if err := e.surface.AddBodyClass(ClassShake); err != nil {
		e.logger.Debug("shake class apply failed", zap.Error(err))
		return
	}

	e.shakeMu.Lock()
	defer e.shakeMu.Unlock()
	e.shakeTimer = time.AfterFunc(shakeDuration, func() {
		if err := e.surface.RemoveBodyClass(ClassShake); err != nil {
			e.logger.Debug("shake class remove failed", zap.Error(err))
		}
	})
}

func (e *EffectsApplier) showOverlay(content domain.OverlayContent) {
	if e.overlayShown {
		return
	}
	if err := e.surface.ShowOverlay(content); err != nil {
		e.logger.Debug("overlay show failed", zap.Error(err))
		return
	}
	e.overlayShown = true
	e.lastStats = content.Stats
}

// RefreshOverlay pushes updated stats to an already visible overlay.
// Unchanged stats are skipped so an idle page does not flood the wire.
func (e *EffectsApplier) RefreshOverlay(stage domain.Stage, stats domain.OverlayStats) {
	if !e.overlayShown || stats == e.lastStats {
		return
	}
	content := overlayFor(stage, e.settings.Config().Mode, stats)
	if err := e.surface.ShowOverlay(content); err != nil {
		e.logger.Debug("overlay refresh failed", zap.Error(err))
		return
	}
	e.lastStats = stats
}

func (e *EffectsApplier) hideOverlay() {
	if !e.overlayShown {
		return
	}
	if err := e.surface.HideOverlay(); err != nil {
		e.logger.Debug("overlay hide failed", zap.Error(err))
	}
	e.overlayShown = false
}

func (e *EffectsApplier) lockScroll() {
	if e.scrollLocked {
		return
	}
	if err := e.surface.SetScrollLock(true); err != nil {
		e.logger.Debug("scroll lock failed", zap.Error(err))
		return
	}
	e.scrollLocked = true
}

func (e *EffectsApplier) unlockScroll() {
	if !e.scrollLocked {
		return
	}
	if err := e.surface.SetScrollLock(false); err != nil {
		e.logger.Debug("scroll unlock failed", zap.Error(err))
	}
	e.scrollLocked = false
}

// OverlayShown reports whether the overlay is currently visible.
func (e *EffectsApplier) OverlayShown() bool {
	return e.overlayShown
}

// ClearIntervention removes every DOM side effect: dim class, blur,
// overlay, scroll lock. It does not touch stage bookkeeping; callers
// that want a full reset do that on the state explicitly.
func (e *EffectsApplier) ClearIntervention() {
	e.removeDim()
	e.clearBlur()
	e.hideOverlay()
	e.unlockScroll()
	e.cancelShake()
	e.shakeFired = false
}

func (e *EffectsApplier) cancelShake() {
	e.shakeMu.Lock()
	defer e.shakeMu.Unlock()
	if e.shakeTimer != nil {
		e.shakeTimer.Stop()
		e.shakeTimer = nil
	}
	// The class may still be on the body if the timer had not fired.
	if err := e.surface.RemoveBodyClass(ClassShake); err != nil {
		e.logger.Debug("shake class remove failed", zap.Error(err))
	}
}

// Destroy cancels any pending timers. Called on page teardown.
func (e *EffectsApplier) Destroy() {
	e.shakeMu.Lock()
	defer e.shakeMu.Unlock()
	if e.shakeTimer != nil {
		e.shakeTimer.Stop()
		e.shakeTimer = nil
	}
}
