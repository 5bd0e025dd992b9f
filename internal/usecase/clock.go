package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quietloop/driftd/internal/domain"
)

// DistractionClock accumulates active distraction time for one page.
// It only counts intervals during which the activity monitor reported
// distraction, and it scopes its accumulation to a site-day key so a
// new calendar day starts from zero.
type DistractionClock struct {
	state    *domain.DistractionState
	monitor  *ActivityMonitor
	store    domain.SnapshotStore
	settings domain.SettingsProvider
	logger   *zap.Logger
	site     string
}

// NewDistractionClock wires a clock to the shared page state.
func NewDistractionClock(
	state *domain.DistractionState,
	monitor *ActivityMonitor,
	store domain.SnapshotStore,
	settings domain.SettingsProvider,
	site string,
	now time.Time,
	logger *zap.Logger,
) *DistractionClock {
	c := &DistractionClock{
		state:    state,
		monitor:  monitor,
		store:    store,
		settings: settings,
		logger:   logger,
		site:     site,
	}
	state.PersistenceKey = c.currentKey(now)
	return c
}

func (c *DistractionClock) currentKey(now time.Time) string {
	return domain.SiteDayKey(c.site, now, c.settings.Config().Persistence.PerDomain)
}

// Tick adds deltaMs to the accumulated time if the monitor reports
// activity right now. It returns true when the calendar day rolled
// over, in which case accumulation has been reset and the caller must
// clear interventions and re-evaluate from scratch.
func (c *DistractionClock) Tick(deltaMs int64, now time.Time) (rolledOver bool) {
	if key := c.currentKey(now); key != c.state.PersistenceKey {
		c.logger.Info("site-day rollover, resetting distraction time",
			zap.String("old_key", c.state.PersistenceKey),
			zap.String("new_key", key))
		c.state.PersistenceKey = key
		c.state.ActiveMs = 0
		rolledOver = true
	}

	if deltaMs > 0 && c.monitor.IsDistractionActive(now) {
		c.state.ActiveMs += deltaMs
	}
	return rolledOver
}

// ActiveMs returns the accumulated active distraction time.
func (c *DistractionClock) ActiveMs() int64 {
	return c.state.ActiveMs
}

// Persist writes the current accumulation under the site-day key.
// The snapshot is a value copy taken now, so state changes that land
// while the write is in flight cannot be lost to a stale read.
func (c *DistractionClock) Persist(ctx context.Context, now time.Time) error {
	snap := domain.Snapshot{
		ActiveMs:  c.state.ActiveMs,
		Stage:     c.state.Stage,
		UpdatedAt: now,
	}
	return c.store.Set(ctx, c.state.PersistenceKey, snap)
}

// Restore loads a previously persisted snapshot for the current
// site-day key and applies it. A snapshot from another day never
// matches because the date is part of the key. Returns true when a
// snapshot was applied; the caller must then re-apply brightness and
// force a stage evaluation so the reloaded page resumes its visual
// state instead of flashing undimmed.
func (c *DistractionClock) Restore(ctx context.Context, now time.Time) (bool, error) {
	if !c.settings.Config().Persistence.CarryOverSameDay {
		return false, nil
	}

	snap, err := c.store.Get(ctx, c.state.PersistenceKey)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}

	c.state.ActiveMs = snap.ActiveMs
	c.logger.Info("restored distraction time",
		zap.String("key", c.state.PersistenceKey),
		zap.Int64("active_ms", snap.ActiveMs))
	return true, nil
}
