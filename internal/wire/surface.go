package wire

import (
	"context"

	"github.com/quietloop/driftd/internal/domain"
)

// CommandSurface implements domain.EffectSurface by emitting effect
// command frames for one page. The real DOM application happens in the
// content script; a write error here means the channel is gone and the
// effects applier treats it like any other per-element DOM failure.
type CommandSurface struct {
	codec  *Codec
	pageID string
}

// NewCommandSurface creates a surface for the given page.
func NewCommandSurface(codec *Codec, pageID string) *CommandSurface {
	return &CommandSurface{codec: codec, pageID: pageID}
}

func (s *CommandSurface) emit(cmd EffectCommand) error {
	return s.codec.Write(Outbound{
		Type:   MsgEffect,
		PageID: s.pageID,
		Effect: &cmd,
	})
}

func (s *CommandSurface) AddBodyClass(name string) error {
	return s.emit(EffectCommand{Op: OpAddClass, Class: name})
}

func (s *CommandSurface) RemoveBodyClass(name string) error {
	return s.emit(EffectCommand{Op: OpRemoveClass, Class: name})
}

func (s *CommandSurface) SetBrightness(percent, transitionMs int, easing string) error {
	return s.emit(EffectCommand{
		Op:           OpSetBrightness,
		Percent:      percent,
		TransitionMs: transitionMs,
		Easing:       easing,
	})
}

func (s *CommandSurface) ApplyBlur(px float64, transitionMs int) error {
	return s.emit(EffectCommand{Op: OpApplyBlur, BlurPx: px, TransitionMs: transitionMs})
}

func (s *CommandSurface) ClearBlur() error {
	return s.emit(EffectCommand{Op: OpClearBlur})
}

func (s *CommandSurface) ShowOverlay(content domain.OverlayContent) error {
	return s.emit(EffectCommand{Op: OpShowOverlay, Overlay: &content})
}

func (s *CommandSurface) HideOverlay() error {
	return s.emit(EffectCommand{Op: OpHideOverlay})
}

func (s *CommandSurface) SetScrollLock(locked bool) error {
	return s.emit(EffectCommand{Op: OpScrollLock, Locked: locked})
}

// Ensure CommandSurface implements domain.EffectSurface.
var _ domain.EffectSurface = (*CommandSurface)(nil)

// ChannelSink implements domain.TelemetrySink by forwarding events to
// the extension as telemetry frames.
type ChannelSink struct {
	codec *Codec
}

// NewChannelSink creates a sink over the codec.
func NewChannelSink(codec *Codec) *ChannelSink {
	return &ChannelSink{codec: codec}
}

// Send forwards the event over the wire.
func (s *ChannelSink) Send(_ context.Context, ev domain.TelemetryEvent) error {
	return s.codec.Write(Outbound{Type: MsgTelemetry, Event: &ev})
}

// Ensure ChannelSink implements domain.TelemetrySink.
var _ domain.TelemetrySink = (*ChannelSink)(nil)
