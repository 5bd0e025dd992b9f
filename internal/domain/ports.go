package domain

import "context"

// SnapshotStore persists distraction snapshots per site-day key.
// Implementations: JSON file store, SQLCipher store.
type SnapshotStore interface {
	// Get returns the snapshot for key, or (nil, nil) if absent.
	Get(ctx context.Context, key string) (*Snapshot, error)

	// Set writes the snapshot for key. May fail; callers retry.
	Set(ctx context.Context, key string, snap Snapshot) error
}

// TelemetrySink receives behavioral event summaries.
// Failures are reported as errors but must never reach the tick loop.
type TelemetrySink interface {
	Send(ctx context.Context, ev TelemetryEvent) error
}

// SettingsProvider supplies configuration and override state.
// Implementations keep results current (push or cached pull); the
// engine re-reads on every evaluation pass.
type SettingsProvider interface {
	// Config returns the current intervention config, already normalized.
	Config() InterventionConfig

	// FocusMode reports whether the user has a focus session active.
	FocusMode() bool

	// Whitelist returns domains for which the engine is disabled.
	Whitelist() []string
}

// EffectSurface is the page as seen by the engine: the content script's
// DOM on the far side of the wire, or a fake in tests. Every call is
// fallible because the page can mutate underneath us; the effects
// applier catches per-call errors and moves on.
type EffectSurface interface {
	AddBodyClass(name string) error
	RemoveBodyClass(name string) error

	// SetBrightness applies a brightness filter to the root element.
	SetBrightness(percent int, transitionMs int, easing string) error

	// ApplyBlur blurs non-interactive content elements, excluding the
	// extension's own overlay UI.
	ApplyBlur(px float64, transitionMs int) error
	ClearBlur() error

	ShowOverlay(content OverlayContent) error
	HideOverlay() error

	SetScrollLock(locked bool) error
}
