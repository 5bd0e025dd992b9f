package wire

import "github.com/quietloop/driftd/internal/domain"

// Inbound message types, content script to host.
const (
	MsgAttach     = "attach"
	MsgDetach     = "detach"
	MsgScroll     = "scroll"
	MsgMedia      = "media"
	MsgVisibility = "visibility"
	MsgOverlay    = "overlay_action"
	MsgConfig     = "config"
)

// Outbound message types, host to content script.
const (
	MsgEffect    = "effect"
	MsgTelemetry = "telemetry"
	MsgError     = "error"
)

// SettingsPayload carries a config push from the extension.
type SettingsPayload struct {
	Config    domain.InterventionConfig `json:"config"`
	FocusMode bool                      `json:"focus_mode"`
	Whitelist []string                  `json:"whitelist"`
}

// Inbound is a frame from the content script. PageID scopes everything
// to one page instance; a tab navigating re-attaches with a fresh id.
type Inbound struct {
	Type        string           `json:"type"`
	PageID      string           `json:"page_id"`
	Domain      string           `json:"domain,omitempty"`
	TimestampMs int64            `json:"timestamp_ms,omitempty"`
	Screens     float64          `json:"screens,omitempty"`
	Visible     *bool            `json:"visible,omitempty"`
	MediaID     string           `json:"media_id,omitempty"`
	MediaState  string           `json:"media_state,omitempty"`
	Action      string           `json:"action,omitempty"`
	Settings    *SettingsPayload `json:"settings,omitempty"`
}

// Effect op names.
const (
	OpAddClass      = "add_class"
	OpRemoveClass   = "remove_class"
	OpSetBrightness = "set_brightness"
	OpApplyBlur     = "apply_blur"
	OpClearBlur     = "clear_blur"
	OpShowOverlay   = "show_overlay"
	OpHideOverlay   = "hide_overlay"
	OpScrollLock    = "scroll_lock"
)

// EffectCommand tells the content script what to do to its DOM.
type EffectCommand struct {
	Op           string                 `json:"op"`
	Class        string                 `json:"class,omitempty"`
	Percent      int                    `json:"percent,omitempty"`
	TransitionMs int                    `json:"transition_ms,omitempty"`
	Easing       string                 `json:"easing,omitempty"`
	BlurPx       float64                `json:"blur_px,omitempty"`
	Overlay      *domain.OverlayContent `json:"overlay,omitempty"`
	Locked       bool                   `json:"locked"`
}

// Outbound is a frame to the content script.
type Outbound struct {
	Type   string                 `json:"type"`
	PageID string                 `json:"page_id,omitempty"`
	Effect *EffectCommand         `json:"effect,omitempty"`
	Event  *domain.TelemetryEvent `json:"event,omitempty"`
	Error  string                 `json:"error,omitempty"`
}
