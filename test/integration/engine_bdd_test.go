//go:build integration

package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/quietloop/driftd/internal/domain"
	"github.com/quietloop/driftd/internal/infra"
	"github.com/quietloop/driftd/internal/session"
	"github.com/quietloop/driftd/internal/usecase"
)

// pageSurface records the visual state of a simulated page. The engine
// is driven synchronously here so no locking is needed.
type pageSurface struct {
	classes    map[string]bool
	brightness int
	blurred    bool
	overlay    *domain.OverlayContent
	locked     bool
}

func newPageSurface() *pageSurface {
	return &pageSurface{classes: map[string]bool{}, brightness: -1}
}

func (p *pageSurface) AddBodyClass(name string) error { p.classes[name] = true; return nil }
func (p *pageSurface) RemoveBodyClass(name string) error { delete(p.classes, name); return nil }
func (p *pageSurface) SetBrightness(percent, _ int, _ string) error {
	p.brightness = percent
	return nil
}
func (p *pageSurface) ApplyBlur(float64, int) error { p.blurred = true; return nil }
func (p *pageSurface) ClearBlur() error             { p.blurred = false; return nil }
func (p *pageSurface) ShowOverlay(c domain.OverlayContent) error {
	p.overlay = &c
	return nil
}
func (p *pageSurface) HideOverlay() error         { p.overlay = nil; return nil }
func (p *pageSurface) SetScrollLock(v bool) error { p.locked = v; return nil }

// page bundles everything one simulated page needs.
type page struct {
	state      *domain.DistractionState
	monitor    *usecase.ActivityMonitor
	clock      *usecase.DistractionClock
	brightness *usecase.BrightnessApplier
	effects    *usecase.EffectsApplier
	engine     *usecase.StageEngine
	surface    *pageSurface
	now        time.Time
}

func openPage(site string, settings domain.SettingsProvider, store domain.SnapshotStore, start time.Time) *page {
	logger := zap.NewNop()
	surface := newPageSurface()
	state := &domain.DistractionState{}
	bstate := &domain.BrightnessState{}

	monitor := usecase.NewActivityMonitor(settings, logger)
	clock := usecase.NewDistractionClock(state, monitor, store, settings, site, start, logger)
	brightness := usecase.NewBrightnessApplier(bstate, surface, settings, logger)
	effects := usecase.NewEffectsApplier(surface, settings, logger)
	engine := usecase.NewStageEngine(state, settings, monitor, brightness, effects, logger)

	return &page{
		state:      state,
		monitor:    monitor,
		clock:      clock,
		brightness: brightness,
		effects:    effects,
		engine:     engine,
		surface:    surface,
		now:        start,
	}
}

// watchVideo advances the page one minute at a time with a video
// playing, evaluating stages after each tick.
func (p *page) watchVideo(minutes int) {
	p.monitor.TrackMediaElement("v1")
	p.monitor.MediaEvent("v1", domain.MediaPlay, p.now)
	for i := 0; i < minutes; i++ {
		p.now = p.now.Add(time.Minute)
		p.clock.Tick(60_000, p.now)
		p.engine.Evaluate(p.now, false)
	}
}

var start = time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

var _ = Describe("Intervention Engine", func() {
	var (
		settings *infra.StaticSettings
		store    *infra.FileStore
		pg       *page
	)

	BeforeEach(func() {
		var err error
		settings = infra.NewStaticSettings(domain.DefaultConfig())
		store, err = infra.NewFileStore(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		pg = openPage("reddit.com", settings, store, start)
	})

	Describe("progressive escalation", func() {
		It("walks through every stage as distraction time grows", func() {
			By("starting untouched")
			pg.engine.Evaluate(pg.now, false)
			Expect(pg.engine.Stage()).To(Equal(domain.StageNone))

			By("dimming within the first minute")
			pg.watchVideo(1)
			Expect(pg.engine.Stage()).To(Equal(domain.StageDim))
			Expect(pg.surface.brightness).To(Equal(93))

			By("reaching 80% at three minutes")
			pg.watchVideo(2)
			Expect(pg.surface.brightness).To(Equal(80))

			By("blurring at ten minutes with brightness floored")
			pg.watchVideo(7)
			Expect(pg.engine.Stage()).To(Equal(domain.StageBlur))
			Expect(pg.surface.brightness).To(Equal(50))
			Expect(pg.surface.blurred).To(BeTrue())

			By("showing the nudge overlay at twelve minutes")
			pg.watchVideo(2)
			Expect(pg.engine.Stage()).To(Equal(domain.StageNudge))
			Expect(pg.surface.overlay).NotTo(BeNil())
			Expect(pg.surface.overlay.Variant).To(Equal(domain.OverlayNudge))

			By("hitting the final stage at fifteen minutes, gentle by default")
			pg.watchVideo(3)
			Expect(pg.engine.Stage()).To(Equal(domain.StageLockout))
			Expect(pg.surface.locked).To(BeFalse())
			Expect(pg.surface.overlay.Variant).To(Equal(domain.OverlayFinal))
		})

		It("locks scrolling at the final stage in strict mode", func() {
			cfg := domain.DefaultConfig()
			cfg.Mode = domain.ModeStrict
			settings.Update(cfg, false, nil)

			pg.watchVideo(16)
			Expect(pg.engine.Stage()).To(Equal(domain.StageLockout))
			Expect(pg.surface.locked).To(BeTrue())
			Expect(pg.surface.overlay.Variant).To(Equal(domain.OverlayBreathing))
		})

		It("never regresses to a lower stage while time keeps counting", func() {
			pg.watchVideo(12)
			Expect(pg.engine.Stage()).To(Equal(domain.StageNudge))

			// Idle ticks with the video paused accumulate nothing and
			// the stage holds.
			pg.monitor.MediaEvent("v1", domain.MediaPause, pg.now)
			for i := 0; i < 5; i++ {
				pg.now = pg.now.Add(time.Minute)
				pg.clock.Tick(60_000, pg.now)
				pg.engine.Evaluate(pg.now, false)
			}
			Expect(pg.engine.Stage()).To(Equal(domain.StageNudge))
		})
	})

	Describe("persistence across reloads", func() {
		It("restores accumulated time and visual state the same day", func() {
			pg.watchVideo(11)
			Expect(pg.engine.Stage()).To(Equal(domain.StageBlur))
			Expect(pg.clock.Persist(context.Background(), pg.now)).To(Succeed())

			By("reopening the page five minutes later")
			reopened := openPage("reddit.com", settings, store, pg.now.Add(5*time.Minute))
			restored, err := reopened.clock.Restore(context.Background(), reopened.now)
			Expect(err).NotTo(HaveOccurred())
			Expect(restored).To(BeTrue())

			reopened.engine.Evaluate(reopened.now, true)
			Expect(reopened.engine.Stage()).To(Equal(domain.StageBlur))
			Expect(reopened.surface.brightness).To(Equal(50))
			Expect(reopened.surface.blurred).To(BeTrue())
		})

		It("starts fresh on a new calendar day", func() {
			pg.watchVideo(11)
			Expect(pg.clock.Persist(context.Background(), pg.now)).To(Succeed())

			nextDay := start.Add(24 * time.Hour)
			reopened := openPage("reddit.com", settings, store, nextDay)
			restored, err := reopened.clock.Restore(context.Background(), nextDay)
			Expect(err).NotTo(HaveOccurred())
			Expect(restored).To(BeFalse())
			Expect(reopened.clock.ActiveMs()).To(BeZero())
		})

		It("keeps sites isolated from each other", func() {
			pg.watchVideo(11)
			Expect(pg.clock.Persist(context.Background(), pg.now)).To(Succeed())

			other := openPage("twitter.com", settings, store, pg.now)
			restored, err := other.clock.Restore(context.Background(), other.now)
			Expect(err).NotTo(HaveOccurred())
			Expect(restored).To(BeFalse())
		})
	})

	Describe("overrides", func() {
		It("suppresses effects during a focus session without touching the clock", func() {
			pg.watchVideo(12)
			accumulated := pg.clock.ActiveMs()
			Expect(pg.surface.overlay).NotTo(BeNil())

			pg.engine.StartFocusSession(pg.now)
			Expect(pg.surface.overlay).To(BeNil())
			Expect(pg.surface.blurred).To(BeFalse())
			Expect(pg.surface.brightness).To(Equal(100))

			By("still counting distraction time underneath")
			pg.watchVideo(2)
			Expect(pg.clock.ActiveMs()).To(BeNumerically(">", accumulated))

			By("resuming the remembered stage when the session ends")
			pg.engine.EndFocusSession(pg.now)
			pg.engine.Evaluate(pg.now, false)
			Expect(pg.surface.overlay).NotTo(BeNil())
			Expect(pg.surface.brightness).To(Equal(50))
		})

		It("snoozes effects and resumes after expiry", func() {
			pg.watchVideo(12)
			pg.engine.Snooze(pg.now)
			Expect(pg.surface.overlay).To(BeNil())
			Expect(pg.engine.Suppressed()).To(BeTrue())

			snooze := time.Duration(settings.Config().SnoozeMinutes) * time.Minute
			pg.now = pg.now.Add(snooze + time.Second)
			pg.engine.Evaluate(pg.now, false)
			Expect(pg.surface.overlay).NotTo(BeNil())
			Expect(pg.engine.Suppressed()).To(BeFalse())
		})

		It("suppresses effects while the global focus mode is on", func() {
			pg.watchVideo(12)
			settings.SetFocusMode(true)
			pg.engine.Evaluate(pg.now, false)
			Expect(pg.surface.overlay).To(BeNil())
			Expect(pg.surface.brightness).To(Equal(100))

			settings.SetFocusMode(false)
			pg.engine.Evaluate(pg.now, false)
			Expect(pg.surface.overlay).NotTo(BeNil())
		})
	})

	Describe("whitelisted sites", func() {
		It("disables the engine entirely", func() {
			settings.Update(domain.DefaultConfig(), false, []string{"wikipedia.org"})
			sess := session.New("en.wikipedia.org", session.Deps{
				Store:    store,
				Sink:     infra.NopSink{},
				Settings: settings,
				Surface:  newPageSurface(),
				Logger:   zap.NewNop(),
			}, session.DefaultConfig())
			Expect(sess.Disabled()).To(BeTrue())
		})
	})
})
