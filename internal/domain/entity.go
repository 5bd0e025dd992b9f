// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stage is a discrete intervention severity level applied to a page.
type Stage int

const (
	StageNone    Stage = iota // no intervention
	StageDim                  // continuous dimming
	StageBlur                 // dim + content blur
	StageNudge                // dim + blur + nudge overlay
	StageLockout              // dim + blur + lockout / strongest nudge
)

// String returns a short label for logging and telemetry.
func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageDim:
		return "dim"
	case StageBlur:
		return "blur"
	case StageNudge:
		return "nudge"
	case StageLockout:
		return "lockout"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Mode selects how far stage 4 is allowed to go.
type Mode string

const (
	ModeGentle Mode = "gentle" // stage 4 is a stronger nudge, no locking
	ModeStrict Mode = "strict" // stage 4 locks scrolling
)

// DistractionState is the per-page accounting the engine mutates.
// ActiveMs only grows while the activity monitor reports distraction;
// Stage only moves forward except through an explicit reset.
type DistractionState struct {
	ActiveMs          int64
	Stage             Stage
	LastScrollAt      time.Time // zero value = no scroll seen yet
	MediaPlaying      bool
	LastStageChangeAt time.Time
	PersistenceKey    string
}

// BrightnessState tracks the last applied brightness percentage.
type BrightnessState struct {
	CurrentPercent int
}

// Snapshot is what gets persisted per site-day key.
type Snapshot struct {
	ActiveMs  int64     `json:"active_ms"`
	Stage     Stage     `json:"stage"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SiteDayKey scopes persistence to a domain and calendar date so
// accumulation carries over within a day and resets on the next.
// With perDomain false all sites share a single daily bucket.
func SiteDayKey(site string, day time.Time, perDomain bool) string {
	date := day.Format("2006-01-02")
	if !perDomain || site == "" {
		return "global_" + date
	}
	return site + "_" + date
}

// ThresholdConfig holds the stage breakpoints in minutes, non-decreasing.
type ThresholdConfig struct {
	Stage1Start   float64 `yaml:"stage1_start" json:"stage1_start"`
	Stage1To80End float64 `yaml:"stage1_to80_end" json:"stage1_to80_end"`
	Stage1To50End float64 `yaml:"stage1_to50_end" json:"stage1_to50_end"`
	Stage2Start   float64 `yaml:"stage2_start" json:"stage2_start"`
	Stage3Start   float64 `yaml:"stage3_start" json:"stage3_start"`
	Stage4Start   float64 `yaml:"stage4_start" json:"stage4_start"`
}

// BrightnessConfig shapes the dimming curve and its CSS transition.
type BrightnessConfig struct {
	Start        int    `yaml:"start" json:"start"`
	At3Min       int    `yaml:"at_3min" json:"at_3min"`
	At10Min      int    `yaml:"at_10min" json:"at_10min"`
	TransitionMs int    `yaml:"transition_ms" json:"transition_ms"`
	Easing       string `yaml:"easing" json:"easing"`
}

// BlurConfig shapes the stage 2+ content blur.
type BlurConfig struct {
	Stage2Px     float64 `yaml:"stage2_px" json:"stage2_px"`
	MaxPx        float64 `yaml:"max_px" json:"max_px"`
	TransitionMs int     `yaml:"transition_ms" json:"transition_ms"`
}

// IdleConfig controls activity detection windows.
type IdleConfig struct {
	ScrollIdleMs     int64 `yaml:"scroll_idle_ms" json:"scroll_idle_ms"`
	VideoIdleGraceMs int64 `yaml:"video_idle_grace_ms" json:"video_idle_grace_ms"`
}

// PersistenceConfig controls snapshot scoping.
type PersistenceConfig struct {
	PerDomain        bool `yaml:"per_domain" json:"per_domain"`
	CarryOverSameDay bool `yaml:"carry_over_same_day" json:"carry_over_same_day"`
}

// InterventionConfig is supplied by the settings provider and read-only
// to the engine. Malformed or missing config falls back to defaults.
type InterventionConfig struct {
	Thresholds    ThresholdConfig   `yaml:"thresholds" json:"thresholds"`
	Brightness    BrightnessConfig  `yaml:"brightness" json:"brightness"`
	Blur          BlurConfig        `yaml:"blur" json:"blur"`
	DebounceMs    int64             `yaml:"debounce_ms" json:"debounce_ms"`
	Idle          IdleConfig        `yaml:"idle" json:"idle"`
	Persistence   PersistenceConfig `yaml:"persistence" json:"persistence"`
	SnoozeMinutes float64           `yaml:"snooze_minutes" json:"snooze_minutes"`
	Mode          Mode              `yaml:"mode" json:"mode"`
}

// DefaultConfig returns the built-in intervention profile:
// dimming starts immediately, reaches 80% at 3 minutes and 50% at 10,
// blur at 10, nudge overlay at 12, lockout at 15.
func DefaultConfig() InterventionConfig {
	return InterventionConfig{
		Thresholds: ThresholdConfig{
			Stage1Start:   0,
			Stage1To80End: 3,
			Stage1To50End: 10,
			Stage2Start:   10,
			Stage3Start:   12,
			Stage4Start:   15,
		},
		Brightness: BrightnessConfig{
			Start:        100,
			At3Min:       80,
			At10Min:      50,
			TransitionMs: 2000,
			Easing:       "ease",
		},
		Blur: BlurConfig{
			Stage2Px:     2,
			MaxPx:        8,
			TransitionMs: 800,
		},
		DebounceMs: 30000,
		Idle: IdleConfig{
			ScrollIdleMs:     5000,
			VideoIdleGraceMs: 2000,
		},
		Persistence: PersistenceConfig{
			PerDomain:        true,
			CarryOverSameDay: true,
		},
		SnoozeMinutes: 5,
		Mode:          ModeGentle,
	}
}

// Normalize repairs a config in place so the engine never sees
// out-of-range values: thresholds are forced non-decreasing, percentages
// clamped, and zero/negative fields replaced with defaults.
func (c *InterventionConfig) Normalize() {
	def := DefaultConfig()

	if c.Thresholds.Stage1Start < 0 {
		c.Thresholds.Stage1Start = def.Thresholds.Stage1Start
	}
	if c.Thresholds.Stage1To80End <= 0 {
		c.Thresholds.Stage1To80End = def.Thresholds.Stage1To80End
	}
	if c.Thresholds.Stage1To50End <= 0 {
		c.Thresholds.Stage1To50End = def.Thresholds.Stage1To50End
	}
	if c.Thresholds.Stage2Start <= 0 {
		c.Thresholds.Stage2Start = def.Thresholds.Stage2Start
	}
	if c.Thresholds.Stage3Start <= 0 {
		c.Thresholds.Stage3Start = def.Thresholds.Stage3Start
	}
	if c.Thresholds.Stage4Start <= 0 {
		c.Thresholds.Stage4Start = def.Thresholds.Stage4Start
	}

	// Breakpoints must be non-decreasing.
	if c.Thresholds.Stage1To80End < c.Thresholds.Stage1Start {
		c.Thresholds.Stage1To80End = c.Thresholds.Stage1Start
	}
	if c.Thresholds.Stage1To50End < c.Thresholds.Stage1To80End {
		c.Thresholds.Stage1To50End = c.Thresholds.Stage1To80End
	}
	if c.Thresholds.Stage2Start < c.Thresholds.Stage1Start {
		c.Thresholds.Stage2Start = c.Thresholds.Stage1Start
	}
	if c.Thresholds.Stage3Start < c.Thresholds.Stage2Start {
		c.Thresholds.Stage3Start = c.Thresholds.Stage2Start
	}
	if c.Thresholds.Stage4Start < c.Thresholds.Stage3Start {
		c.Thresholds.Stage4Start = c.Thresholds.Stage3Start
	}

	c.Brightness.Start = clampPercent(c.Brightness.Start, def.Brightness.Start)
	c.Brightness.At3Min = clampPercent(c.Brightness.At3Min, def.Brightness.At3Min)
	c.Brightness.At10Min = clampPercent(c.Brightness.At10Min, def.Brightness.At10Min)
	if c.Brightness.TransitionMs <= 0 {
		c.Brightness.TransitionMs = def.Brightness.TransitionMs
	}
	if c.Brightness.Easing == "" {
		c.Brightness.Easing = def.Brightness.Easing
	}

	if c.Blur.Stage2Px <= 0 {
		c.Blur.Stage2Px = def.Blur.Stage2Px
	}
	if c.Blur.MaxPx <= 0 {
		c.Blur.MaxPx = def.Blur.MaxPx
	}
	if c.Blur.Stage2Px > c.Blur.MaxPx {
		c.Blur.Stage2Px = c.Blur.MaxPx
	}
	if c.Blur.TransitionMs <= 0 {
		c.Blur.TransitionMs = def.Blur.TransitionMs
	}

	if c.DebounceMs <= 0 {
		c.DebounceMs = def.DebounceMs
	}
	if c.Idle.ScrollIdleMs <= 0 {
		c.Idle.ScrollIdleMs = def.Idle.ScrollIdleMs
	}
	if c.Idle.VideoIdleGraceMs <= 0 {
		c.Idle.VideoIdleGraceMs = def.Idle.VideoIdleGraceMs
	}
	if c.SnoozeMinutes <= 0 {
		c.SnoozeMinutes = def.SnoozeMinutes
	}
	if c.Mode != ModeGentle && c.Mode != ModeStrict {
		c.Mode = def.Mode
	}
}

func clampPercent(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	if v > 100 {
		return 100
	}
	return v
}

// SiteType is a coarse classification of a monitored domain.
type SiteType string

const (
	SiteVideo   SiteType = "video"
	SiteSocial  SiteType = "social"
	SiteGeneric SiteType = "generic"
)

// siteTypes is the minimal lookup table; anything absent is generic.
var siteTypes = map[string]SiteType{
	"youtube.com":   SiteVideo,
	"vimeo.com":     SiteVideo,
	"twitch.tv":     SiteVideo,
	"twitter.com":   SiteSocial,
	"x.com":         SiteSocial,
	"reddit.com":    SiteSocial,
	"instagram.com": SiteSocial,
	"tiktok.com":    SiteSocial,
	"facebook.com":  SiteSocial,
}

// SiteTypeFor classifies a domain, matching registered suffixes so
// "m.youtube.com" resolves the same as "youtube.com".
func SiteTypeFor(site string) SiteType {
	site = strings.ToLower(strings.TrimPrefix(site, "www."))
	if t, ok := siteTypes[site]; ok {
		return t
	}
	for suffix, t := range siteTypes {
		if strings.HasSuffix(site, "."+suffix) {
			return t
		}
	}
	return SiteGeneric
}

// MediaState is the playback state reported for a tracked media element.
type MediaState string

const (
	MediaPlay  MediaState = "play"
	MediaPause MediaState = "pause"
	MediaEnded MediaState = "ended"
)

// OverlayVariant distinguishes the stage 3 nudge from the stage 4 page.
type OverlayVariant string

const (
	OverlayNudge     OverlayVariant = "nudge"
	OverlayFinal     OverlayVariant = "final"
	OverlayBreathing OverlayVariant = "breathing"
)

// OverlayStats is the live behavioral summary the nudge overlay renders.
type OverlayStats struct {
	ActiveSeconds int     `json:"active_seconds"`
	ScrollScreens float64 `json:"scroll_screens"`
	Stage         Stage   `json:"stage"`
}

// OverlayContent describes the full-viewport overlay.
type OverlayContent struct {
	Variant OverlayVariant `json:"variant"`
	Message string         `json:"message"`
	Stats   OverlayStats   `json:"stats"`
}

// EventKind tags telemetry events.
type EventKind string

const (
	EventSnapshot  EventKind = "snapshot"
	EventHeartbeat EventKind = "heartbeat"
)

// TelemetryEvent is the behavioral summary forwarded to the sink.
type TelemetryEvent struct {
	Kind          EventKind  `json:"kind"`
	Domain        string     `json:"domain"`
	SiteType      SiteType   `json:"site_type,omitempty"`
	ActiveMs      int64      `json:"active_ms"`
	Stage         Stage      `json:"stage"`
	ScrollScreens float64    `json:"scroll_screens,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
	Host          *HostStats `json:"host,omitempty"`
}

// HostStats reports the host process itself, for status and heartbeats.
type HostStats struct {
	PID        int     `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	UptimeSec  int64   `json:"uptime_sec"`
}
