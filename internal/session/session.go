// Package session orchestrates the per-page intervention engine: one
// Session per attached page, driven by a periodic tick and by events
// forwarded from the content script.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quietloop/driftd/internal/domain"
	"github.com/quietloop/driftd/internal/usecase"
)

// EventKind identifies an inbound page event.
type EventKind string

const (
	EventScroll     EventKind = "scroll"
	EventMedia      EventKind = "media"
	EventVisibility EventKind = "visibility"
	EventOverlay    EventKind = "overlay"
)

// Overlay action names, matching the two buttons the overlay renders.
const (
	ActionDismiss    = "dismiss"
	ActionSnooze     = "snooze"
	ActionFocusStart = "focus_start"
	ActionFocusEnd   = "focus_end"
)

// Event is a page event delivered to the session goroutine.
type Event struct {
	Kind       EventKind
	At         time.Time
	Screens    float64 // scroll distance in screen-heights
	Visible    bool
	MediaID    string
	MediaState domain.MediaState
	Action     string
}

// Config holds session loop timing.
type Config struct {
	TickInterval      time.Duration // engine tick (default 1s)
	PersistInterval   time.Duration // snapshot flush (default 10s)
	HeartbeatInterval time.Duration // host stats heartbeat (default 60s)
	SendInterval      time.Duration // telemetry rate bound
	Now               func() time.Time
}

// DefaultConfig returns the default loop timing.
func DefaultConfig() Config {
	return Config{
		TickInterval:      time.Second,
		PersistInterval:   10 * time.Second,
		HeartbeatInterval: 60 * time.Second,
		SendInterval:      usecase.DefaultSendInterval,
		Now:               time.Now,
	}
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.PersistInterval <= 0 {
		c.PersistInterval = def.PersistInterval
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// persistGrace bounds the best-effort flush during teardown.
const persistGrace = 500 * time.Millisecond

// Session runs the whole intervention engine for one page. All engine
// state is confined to the goroutine running Run; other goroutines talk
// to it only through Deliver and Destroy.
type Session struct {
	site     string
	config   Config
	settings domain.SettingsProvider
	logger   *zap.Logger

	state      *domain.DistractionState
	monitor    *usecase.ActivityMonitor
	clock      *usecase.DistractionClock
	brightness *usecase.BrightnessApplier
	effects    *usecase.EffectsApplier
	engine     *usecase.StageEngine
	bridge     *usecase.Bridge

	// hostStats is optional; nil disables heartbeats.
	hostStats func() (*domain.HostStats, error)

	disabled    bool
	events      chan Event
	done        chan struct{}
	destroyOnce sync.Once
	lastTick    time.Time
}

// Deps are the external collaborators a session needs.
type Deps struct {
	Store     domain.SnapshotStore
	Sink      domain.TelemetrySink
	Settings  domain.SettingsProvider
	Surface   domain.EffectSurface
	HostStats func() (*domain.HostStats, error)
	Logger    *zap.Logger
}

// New builds a session for the given site with all components wired.
func New(site string, deps Deps, config Config) *Session {
	config.normalize()
	now := config.Now()
	logger := deps.Logger.With(zap.String("site", site))

	state := &domain.DistractionState{}
	bstate := &domain.BrightnessState{}

	monitor := usecase.NewActivityMonitor(deps.Settings, logger)
	bridge := usecase.NewBridge(deps.Store, deps.Sink, config.SendInterval, logger)
	clock := usecase.NewDistractionClock(state, monitor, bridge, deps.Settings, site, now, logger)
	brightness := usecase.NewBrightnessApplier(bstate, deps.Surface, deps.Settings, logger)
	effects := usecase.NewEffectsApplier(deps.Surface, deps.Settings, logger)
	engine := usecase.NewStageEngine(state, deps.Settings, monitor, brightness, effects, logger)

	return &Session{
		site:       site,
		config:     config,
		settings:   deps.Settings,
		logger:     logger,
		state:      state,
		monitor:    monitor,
		clock:      clock,
		brightness: brightness,
		effects:    effects,
		engine:     engine,
		bridge:     bridge,
		hostStats:  deps.HostStats,
		disabled:   whitelisted(site, deps.Settings.Whitelist()),
		events:     make(chan Event, 64),
		done:       make(chan struct{}),
	}
}

// whitelisted matches the site against the whitelist, including
// subdomains ("news.example.com" matches "example.com").
func whitelisted(site string, list []string) bool {
	site = strings.ToLower(site)
	for _, entry := range list {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if site == entry || strings.HasSuffix(site, "."+entry) {
			return true
		}
	}
	return false
}

// Deliver hands a page event to the session. Safe to call from the wire
// reader goroutine; events are dropped once the session is destroyed.
func (s *Session) Deliver(ev Event) {
	select {
	case <-s.done:
	case s.events <- ev:
	}
}

// Disabled reports whether the site is whitelisted.
func (s *Session) Disabled() bool {
	return s.disabled
}

// Run attaches to the page and drives the engine until the context is
// canceled or Destroy is called. Blocks, like any daemon loop.
func (s *Session) Run(ctx context.Context) error {
	if s.disabled {
		s.logger.Info("site whitelisted, engine disabled")
		<-s.waitDone(ctx)
		return nil
	}

	s.restore(ctx)

	tick := time.NewTicker(s.config.TickInterval)
	persist := time.NewTicker(s.config.PersistInterval)
	heartbeat := time.NewTicker(s.config.HeartbeatInterval)
	defer func() {
		tick.Stop()
		persist.Stop()
		heartbeat.Stop()
	}()

	s.lastTick = s.config.Now()
	s.logger.Info("session started", zap.String("key", s.state.PersistenceKey))

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return ctx.Err()

		case <-s.done:
			s.teardown()
			return nil

		case ev := <-s.events:
			s.safely(func() { s.handleEvent(ev) })

		case <-tick.C:
			s.safely(func() { s.handleTick(s.config.Now()) })

		case <-persist.C:
			s.safely(func() { s.flush(ctx) })

		case <-heartbeat.C:
			s.safely(func() { s.publishHeartbeat() })
		}
	}
}

func (s *Session) waitDone(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		close(ch)
	}()
	return ch
}

// safely keeps any panic out of the host page's world: the loop logs
// and keeps ticking.
func (s *Session) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered from engine panic", zap.Any("panic", r))
		}
	}()
	fn()
}

// restore loads the same-day snapshot and immediately re-applies the
// visual state so a reloaded page does not flash undimmed.
func (s *Session) restore(ctx context.Context) {
	now := s.config.Now()
	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	restored, err := s.clock.Restore(rctx, now)
	if err != nil {
		s.logger.Warn("snapshot restore failed, starting fresh", zap.Error(err))
		return
	}
	if restored {
		s.engine.Evaluate(now, true)
	}
}

func (s *Session) handleEvent(ev Event) {
	now := ev.At
	if now.IsZero() {
		now = s.config.Now()
	}

	switch ev.Kind {
	case EventScroll:
		s.monitor.RecordScroll(now, ev.Screens)

	case EventVisibility:
		s.monitor.SetVisibility(ev.Visible)
		if !ev.Visible {
			// Hidden tab pauses accumulation; take the chance to flush.
			s.flushWithGrace()
		}

	case EventMedia:
		s.monitor.TrackMediaElement(ev.MediaID)
		s.monitor.MediaEvent(ev.MediaID, ev.MediaState, now)

	case EventOverlay:
		s.handleOverlayAction(ev.Action, now)

	default:
		s.logger.Warn("unknown event kind", zap.String("kind", string(ev.Kind)))
	}
}

func (s *Session) handleOverlayAction(action string, now time.Time) {
	switch action {
	case ActionDismiss, ActionSnooze:
		s.engine.Snooze(now)
	case ActionFocusStart:
		s.engine.StartFocusSession(now)
	case ActionFocusEnd:
		s.engine.EndFocusSession(now)
	default:
		s.logger.Warn("unknown overlay action", zap.String("action", action))
	}
}

// handleTick is one engine step: accumulate time, evaluate stages,
// queue telemetry, retry failed writes.
func (s *Session) handleTick(now time.Time) {
	delta := now.Sub(s.lastTick).Milliseconds()
	s.lastTick = now
	if delta < 0 {
		delta = 0
	}

	rolled := s.clock.Tick(delta, now)
	if rolled {
		// New calendar day: full reset, then re-evaluate immediately.
		s.engine.ClearIntervention(true)
	}
	s.engine.Evaluate(now, rolled)

	s.bridge.Publish(domain.TelemetryEvent{
		Kind:          domain.EventSnapshot,
		Domain:        s.site,
		SiteType:      domain.SiteTypeFor(s.site),
		ActiveMs:      s.state.ActiveMs,
		Stage:         s.state.Stage,
		ScrollScreens: s.monitor.ScrollScreens(),
		Timestamp:     now,
	})
}

// flush persists the snapshot and drains telemetry/retries.
func (s *Session) flush(ctx context.Context) {
	now := s.config.Now()
	fctx, cancel := context.WithTimeout(ctx, persistGrace)
	defer cancel()

	if err := s.clock.Persist(fctx, now); err != nil {
		s.logger.Warn("snapshot persist failed", zap.Error(err))
	}
	s.bridge.RetryPending(fctx, now)
	s.bridge.Flush(fctx, now)
}

func (s *Session) flushWithGrace() {
	ctx, cancel := context.WithTimeout(context.Background(), persistGrace)
	defer cancel()
	now := s.config.Now()
	if err := s.clock.Persist(ctx, now); err != nil {
		s.logger.Warn("snapshot persist failed", zap.Error(err))
	}
}

func (s *Session) publishHeartbeat() {
	if s.hostStats == nil {
		return
	}
	stats, err := s.hostStats()
	if err != nil {
		s.logger.Debug("host stats unavailable", zap.Error(err))
		return
	}
	s.bridge.Publish(domain.TelemetryEvent{
		Kind:      domain.EventHeartbeat,
		Domain:    s.site,
		ActiveMs:  s.state.ActiveMs,
		Stage:     s.state.Stage,
		Timestamp: s.config.Now(),
		Host:      stats,
	})
}

// teardown is the page-unload path: clear timers, final best-effort
// flush, leave the persisted snapshot behind for the next attach.
func (s *Session) teardown() {
	s.effects.Destroy()
	if !s.disabled {
		s.flushWithGrace()
	}
	s.logger.Info("session stopped",
		zap.Int64("active_ms", s.state.ActiveMs),
		zap.Stringer("stage", s.state.Stage))
}

// Destroy stops the session loop. Idempotent.
func (s *Session) Destroy() {
	s.destroyOnce.Do(func() { close(s.done) })
}

// State exposes a copy of the accounting for status and tests.
func (s *Session) State() domain.DistractionState {
	return *s.state
}

// Brightness returns the last applied brightness percent.
func (s *Session) Brightness() int {
	return s.brightness.Current()
}
