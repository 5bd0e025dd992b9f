package wire

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quietloop/driftd/internal/domain"
	"github.com/quietloop/driftd/internal/session"
)

// ConfigUpdater is implemented by settings providers that accept pushes
// from the extension (config frames).
type ConfigUpdater interface {
	Update(cfg domain.InterventionConfig, focusMode bool, whitelist []string)
}

// Host multiplexes page sessions over one native messaging channel.
// The browser launches the host and owns its lifetime: when stdin
// closes, every session is destroyed with a final flush and Run
// returns.
type Host struct {
	codec     *Codec
	store     domain.SnapshotStore
	settings  domain.SettingsProvider
	hostStats func() (*domain.HostStats, error)
	sessCfg   session.Config
	logger    *zap.Logger

	sessions map[string]*session.Session
	wg       sync.WaitGroup
}

// NewHost creates a host over the codec.
func NewHost(
	codec *Codec,
	store domain.SnapshotStore,
	settings domain.SettingsProvider,
	hostStats func() (*domain.HostStats, error),
	sessCfg session.Config,
	logger *zap.Logger,
) *Host {
	return &Host{
		codec:     codec,
		store:     store,
		settings:  settings,
		hostStats: hostStats,
		sessCfg:   sessCfg,
		logger:    logger,
		sessions:  map[string]*session.Session{},
	}
}

// Run reads frames until the channel closes or the context is
// canceled. Sessions run on their own goroutines; engine state stays
// confined to each session's goroutine, the read loop only delivers.
func (h *Host) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var msg Inbound
		if err := h.codec.Read(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				h.logger.Info("channel closed by browser")
				return nil
			}
			if errors.Is(err, ErrMalformed) {
				h.logger.Warn("dropping malformed frame", zap.Error(err))
				h.writeError("", "malformed frame")
				continue
			}
			return err
		}

		h.dispatch(ctx, msg)
	}
}

func (h *Host) dispatch(ctx context.Context, msg Inbound) {
	switch msg.Type {
	case MsgAttach:
		h.attach(ctx, msg)

	case MsgDetach:
		if sess, ok := h.sessions[msg.PageID]; ok {
			sess.Destroy()
			delete(h.sessions, msg.PageID)
		}

	case MsgConfig:
		h.applyConfig(msg)

	case MsgScroll, MsgMedia, MsgVisibility, MsgOverlay:
		sess, ok := h.sessions[msg.PageID]
		if !ok {
			h.logger.Warn("event for unknown page", zap.String("page_id", msg.PageID))
			h.writeError(msg.PageID, "unknown page")
			return
		}
		sess.Deliver(toEvent(msg))

	default:
		h.logger.Warn("unknown message type", zap.String("type", msg.Type))
		h.writeError(msg.PageID, "unknown message type")
	}
}

func (h *Host) attach(ctx context.Context, msg Inbound) {
	// Re-attach with the same id replaces the old session (navigation).
	if old, ok := h.sessions[msg.PageID]; ok {
		old.Destroy()
	}

	sess := session.New(msg.Domain, session.Deps{
		Store:     h.store,
		Sink:      NewChannelSink(h.codec),
		Settings:  h.settings,
		Surface:   NewCommandSurface(h.codec, msg.PageID),
		HostStats: h.hostStats,
		Logger:    h.logger,
	}, h.sessCfg)

	h.sessions[msg.PageID] = sess
	h.logger.Info("page attached",
		zap.String("page_id", msg.PageID),
		zap.String("domain", msg.Domain),
		zap.Bool("disabled", sess.Disabled()))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Warn("session ended with error", zap.Error(err))
		}
	}()
}

func (h *Host) applyConfig(msg Inbound) {
	if msg.Settings == nil {
		h.writeError(msg.PageID, "config frame without settings")
		return
	}
	updater, ok := h.settings.(ConfigUpdater)
	if !ok {
		h.logger.Warn("settings provider does not accept pushes, ignoring config frame")
		return
	}
	updater.Update(msg.Settings.Config, msg.Settings.FocusMode, msg.Settings.Whitelist)
	h.logger.Info("config updated from extension")
}

func toEvent(msg Inbound) session.Event {
	ev := session.Event{
		Screens: msg.Screens,
		MediaID: msg.MediaID,
		Action:  msg.Action,
	}
	if msg.TimestampMs > 0 {
		ev.At = time.UnixMilli(msg.TimestampMs)
	}

	switch msg.Type {
	case MsgScroll:
		ev.Kind = session.EventScroll
	case MsgMedia:
		ev.Kind = session.EventMedia
		ev.MediaState = domain.MediaState(msg.MediaState)
	case MsgVisibility:
		ev.Kind = session.EventVisibility
		ev.Visible = msg.Visible == nil || *msg.Visible
	case MsgOverlay:
		ev.Kind = session.EventOverlay
	}
	return ev
}

func (h *Host) writeError(pageID, text string) {
	if err := h.codec.Write(Outbound{Type: MsgError, PageID: pageID, Error: text}); err != nil {
		h.logger.Debug("error frame write failed", zap.Error(err))
	}
}

func (h *Host) shutdown() {
	for id, sess := range h.sessions {
		sess.Destroy()
		delete(h.sessions, id)
	}
	h.wg.Wait()
}
