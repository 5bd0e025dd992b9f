// Package usecase contains application business logic.
package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/quietloop/driftd/internal/domain"
)

// ActivityMonitor decides whether the user is actively consuming content
// right now. Scroll recency and media playback both count; a hidden tab
// never does. Media elements are tracked individually so pausing one of
// several playing videos does not clear the aggregate signal.
type ActivityMonitor struct {
	settings domain.SettingsProvider
	logger   *zap.Logger

	visible       bool
	lastScrollAt  time.Time
	media         map[string]bool // element id -> currently playing
	lastMediaStop time.Time
	scrollScreens float64
}

// NewActivityMonitor creates a monitor for a freshly attached page.
// Pages start visible; the first visibility event corrects this if not.
func NewActivityMonitor(settings domain.SettingsProvider, logger *zap.Logger) *ActivityMonitor {
	return &ActivityMonitor{
		settings: settings,
		logger:   logger,
		visible:  true,
		media:    map[string]bool{},
	}
}

// RecordScroll notes a scroll event and its distance in screen-heights.
func (m *ActivityMonitor) RecordScroll(now time.Time, screens float64) {
	m.lastScrollAt = now
	if screens > 0 {
		m.scrollScreens += screens
	}
}

// SetVisibility records page/tab visibility.
func (m *ActivityMonitor) SetVisibility(visible bool) {
	if m.visible != visible {
		m.logger.Debug("visibility changed", zap.Bool("visible", visible))
	}
	m.visible = visible
}

// TrackMediaElement registers a media element id. Registering the same
// element twice is a no-op, mirroring the single-binding guard on the
// page side.
func (m *ActivityMonitor) TrackMediaElement(id string) {
	if _, ok := m.media[id]; ok {
		return
	}
	m.media[id] = false
}

// MediaEvent applies a play/pause/ended event for a tracked element and
// recomputes the aggregate playing signal.
func (m *ActivityMonitor) MediaEvent(id string, state domain.MediaState, now time.Time) {
	wasPlaying := m.anyMediaPlaying()

	switch state {
	case domain.MediaPlay:
		m.media[id] = true
	case domain.MediaPause, domain.MediaEnded:
		m.media[id] = false
	default:
		m.logger.Warn("unknown media state", zap.String("state", string(state)))
		return
	}

	if wasPlaying && !m.anyMediaPlaying() {
		m.lastMediaStop = now
	}
}

// anyMediaPlaying is the aggregate over all tracked elements.
func (m *ActivityMonitor) anyMediaPlaying() bool {
	for _, playing := range m.media {
		if playing {
			return true
		}
	}
	return false
}

// MediaPlaying reports whether any tracked media element is playing.
func (m *ActivityMonitor) MediaPlaying() bool {
	return m.anyMediaPlaying()
}

// Visible reports the last known page visibility.
func (m *ActivityMonitor) Visible() bool {
	return m.visible
}

// ScrollScreens returns cumulative scroll distance in screen-heights.
func (m *ActivityMonitor) ScrollScreens() float64 {
	return m.scrollScreens
}

// IsDistractionActive reports whether the user is actively consuming
// content at the given instant. A hidden tab is never active. Playing
// media short-circuits the scroll-idle window; a short grace after all
// media stops smooths over seeks and brief pauses.
func (m *ActivityMonitor) IsDistractionActive(now time.Time) bool {
	if !m.visible {
		return false
	}

	if m.anyMediaPlaying() {
		return true
	}

	idle := m.settings.Config().Idle

	if !m.lastMediaStop.IsZero() &&
		now.Sub(m.lastMediaStop) <= time.Duration(idle.VideoIdleGraceMs)*time.Millisecond {
		return true
	}

	if m.lastScrollAt.IsZero() {
		return false
	}
	return now.Sub(m.lastScrollAt) <= time.Duration(idle.ScrollIdleMs)*time.Millisecond
}
