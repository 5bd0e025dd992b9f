package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quietloop/driftd/internal/domain"
)

const (
	// Store write retry policy: next-tick retries with exponential
	// backoff, then the write is dropped. Data loss is acceptable;
	// blocking the tick loop is not.
	maxStoreAttempts  = 4
	baseStoreBackoff  = 2 * time.Second
	maxStoreBackoff   = 30 * time.Second
	telemetryCooldown = 30 * time.Second
)

// DefaultSendInterval bounds how often telemetry leaves the process.
const DefaultSendInterval = 15 * time.Second

type pendingWrite struct {
	snap      domain.Snapshot
	attempts  int
	nextRetry time.Time
}

// Bridge sits between the engine and its external collaborators. It
// wraps the snapshot store with retry-on-next-tick semantics and
// forwards telemetry at a bounded rate, degrading to a silent fallback
// mode while the sink is unreachable. It is called only from the
// session goroutine.
type Bridge struct {
	store  domain.SnapshotStore
	sink   domain.TelemetrySink
	logger *zap.Logger

	sendInterval time.Duration
	lastSendAt   time.Time
	queued       *domain.TelemetryEvent // latest-wins between sends

	pending map[string]*pendingWrite // latest-wins per key

	fallback      bool
	fallbackUntil time.Time
}

// NewBridge creates a bridge over the given store and sink.
func NewBridge(store domain.SnapshotStore, sink domain.TelemetrySink, sendInterval time.Duration, logger *zap.Logger) *Bridge {
	if sendInterval <= 0 {
		sendInterval = DefaultSendInterval
	}
	return &Bridge{
		store:        store,
		sink:         sink,
		logger:       logger,
		sendInterval: sendInterval,
		pending:      map[string]*pendingWrite{},
	}
}

// Get reads a snapshot through to the store. A pending unflushed write
// for the key shadows whatever the store holds, so restores never see a
// value older than the last accepted Set.
func (b *Bridge) Get(ctx context.Context, key string) (*domain.Snapshot, error) {
	if pw, ok := b.pending[key]; ok {
		snap := pw.snap
		return &snap, nil
	}
	return b.store.Get(ctx, key)
}

// Set writes a snapshot, caching it for retry when the store fails.
// Repeated failures for the same key keep only the newest snapshot.
func (b *Bridge) Set(ctx context.Context, key string, snap domain.Snapshot) error {
	if err := b.store.Set(ctx, key, snap); err != nil {
		b.logger.Warn("snapshot write failed, will retry",
			zap.String("key", key),
			zap.Error(err))
		b.queueWrite(key, snap, 1)
		return nil
	}
	delete(b.pending, key)
	return nil
}

func (b *Bridge) queueWrite(key string, snap domain.Snapshot, attempts int) {
	backoff := baseStoreBackoff << (attempts - 1)
	if backoff > maxStoreBackoff {
		backoff = maxStoreBackoff
	}
	b.pending[key] = &pendingWrite{
		snap:      snap,
		attempts:  attempts,
		nextRetry: time.Now().Add(backoff),
	}
}

// RetryPending retries cached writes whose backoff has elapsed. Writes
// that exhaust their attempts are dropped with a warning.
func (b *Bridge) RetryPending(ctx context.Context, now time.Time) {
	for key, pw := range b.pending {
		if now.Before(pw.nextRetry) {
			continue
		}
		if err := b.store.Set(ctx, key, pw.snap); err != nil {
			if pw.attempts >= maxStoreAttempts {
				b.logger.Warn("dropping snapshot after repeated store failures",
					zap.String("key", key),
					zap.Int("attempts", pw.attempts),
					zap.Error(err))
				delete(b.pending, key)
				continue
			}
			b.queueWrite(key, pw.snap, pw.attempts+1)
			continue
		}
		delete(b.pending, key)
	}
}

// PendingWrites reports how many writes are waiting for retry.
func (b *Bridge) PendingWrites() int {
	return len(b.pending)
}

// Publish queues a telemetry event. Events between send windows are
// coalesced latest-wins; the cross-process channel never sees more than
// one summary per interval.
func (b *Bridge) Publish(ev domain.TelemetryEvent) {
	b.queued = &ev
}

// Flush forwards the queued event if the send window has elapsed. Sink
// failures flip the bridge into fallback mode: the engine keeps running
// and telemetry stays quiet until the cooldown expires.
func (b *Bridge) Flush(ctx context.Context, now time.Time) {
	if b.queued == nil {
		return
	}
	if now.Sub(b.lastSendAt) < b.sendInterval {
		return
	}
	if b.fallback && now.Before(b.fallbackUntil) {
		return
	}

	ev := *b.queued
	if err := b.sink.Send(ctx, ev); err != nil {
		if !b.fallback {
			b.logger.Warn("telemetry sink unreachable, entering fallback mode", zap.Error(err))
		}
		b.fallback = true
		b.fallbackUntil = now.Add(telemetryCooldown)
		return
	}

	if b.fallback {
		b.logger.Info("telemetry sink reachable again")
	}
	b.fallback = false
	b.queued = nil
	b.lastSendAt = now
}

// Fallback reports whether the bridge is in degraded telemetry mode.
func (b *Bridge) Fallback() bool {
	return b.fallback
}

var _ domain.SnapshotStore = (*Bridge)(nil)
