package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quietloop/driftd/internal/domain"
)

func TestBridge_SetPassesThroughOnSuccess(t *testing.T) {
	store := newMemStore()
	b := NewBridge(store, &recordSink{}, 0, zap.NewNop())

	snap := domain.Snapshot{ActiveMs: 5000}
	require.NoError(t, b.Set(context.Background(), "reddit.com_2026-08-29", snap))
	assert.Equal(t, int64(5000), store.snaps["reddit.com_2026-08-29"].ActiveMs)
	assert.Zero(t, b.PendingWrites())
}

func TestBridge_FailedWriteIsCachedNotReturned(t *testing.T) {
	store := newMemStore()
	store.setErr = errors.New("write failed")
	b := NewBridge(store, &recordSink{}, 0, zap.NewNop())

	err := b.Set(context.Background(), "k", domain.Snapshot{ActiveMs: 1000})
	assert.NoError(t, err, "the tick loop must not see store failures")
	assert.Equal(t, 1, b.PendingWrites())
}

func TestBridge_PendingWriteKeepsNewestSnapshot(t *testing.T) {
	store := newMemStore()
	store.setErr = errors.New("write failed")
	b := NewBridge(store, &recordSink{}, 0, zap.NewNop())
	ctx := context.Background()

	_ = b.Set(ctx, "k", domain.Snapshot{ActiveMs: 1000})
	_ = b.Set(ctx, "k", domain.Snapshot{ActiveMs: 2000})
	require.Equal(t, 1, b.PendingWrites())

	// The shadowed read sees the newest attempt.
	snap, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(2000), snap.ActiveMs)
}

func TestBridge_GetFallsThroughWhenNothingPending(t *testing.T) {
	store := newMemStore()
	store.snaps["k"] = domain.Snapshot{ActiveMs: 7000}
	b := NewBridge(store, &recordSink{}, 0, zap.NewNop())

	snap, err := b.Get(context.Background(), "k")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(7000), snap.ActiveMs)
}

func TestBridge_RetryHonorsBackoffWindow(t *testing.T) {
	store := newMemStore()
	store.setErr = errors.New("write failed")
	b := NewBridge(store, &recordSink{}, 0, zap.NewNop())
	ctx := context.Background()

	_ = b.Set(ctx, "k", domain.Snapshot{ActiveMs: 1000})
	require.Equal(t, 1, store.setCalls)

	// Inside the backoff window nothing is retried.
	b.RetryPending(ctx, time.Now())
	assert.Equal(t, 1, store.setCalls)

	// Once the window has passed and the store recovered, the write lands.
	store.setErr = nil
	b.RetryPending(ctx, time.Now().Add(baseStoreBackoff+time.Second))
	assert.Equal(t, 2, store.setCalls)
	assert.Zero(t, b.PendingWrites())
	assert.Equal(t, int64(1000), store.snaps["k"].ActiveMs)
}

func TestBridge_DropsWriteAfterMaxAttempts(t *testing.T) {
	store := newMemStore()
	store.setErr = errors.New("write failed")
	b := NewBridge(store, &recordSink{}, 0, zap.NewNop())
	ctx := context.Background()

	_ = b.Set(ctx, "k", domain.Snapshot{ActiveMs: 1000})

	// Walk the retry schedule until the attempts are exhausted.
	at := time.Now()
	for i := 0; i < maxStoreAttempts; i++ {
		at = at.Add(maxStoreBackoff + time.Second)
		b.RetryPending(ctx, at)
	}
	assert.Zero(t, b.PendingWrites(), "exhausted writes are dropped, not retried forever")
}

func TestBridge_FlushRespectsSendInterval(t *testing.T) {
	sink := &recordSink{}
	b := NewBridge(newMemStore(), sink, 15*time.Second, zap.NewNop())
	ctx := context.Background()
	start := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	b.Publish(domain.TelemetryEvent{Kind: domain.EventSnapshot, ActiveMs: 1000})
	b.Flush(ctx, start)
	require.Len(t, sink.events, 1)

	// Within the window new events stay queued.
	b.Publish(domain.TelemetryEvent{Kind: domain.EventSnapshot, ActiveMs: 2000})
	b.Flush(ctx, start.Add(5*time.Second))
	assert.Len(t, sink.events, 1)

	b.Flush(ctx, start.Add(15*time.Second))
	require.Len(t, sink.events, 2)
	assert.Equal(t, int64(2000), sink.events[1].ActiveMs)
}

func TestBridge_PublishCoalescesLatestWins(t *testing.T) {
	sink := &recordSink{}
	b := NewBridge(newMemStore(), sink, 15*time.Second, zap.NewNop())
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	b.Publish(domain.TelemetryEvent{ActiveMs: 1000})
	b.Publish(domain.TelemetryEvent{ActiveMs: 2000})
	b.Publish(domain.TelemetryEvent{ActiveMs: 3000})
	b.Flush(context.Background(), now)

	require.Len(t, sink.events, 1)
	assert.Equal(t, int64(3000), sink.events[0].ActiveMs)
}

func TestBridge_FlushWithEmptyQueueIsNoop(t *testing.T) {
	sink := &recordSink{}
	b := NewBridge(newMemStore(), sink, 15*time.Second, zap.NewNop())

	b.Flush(context.Background(), time.Now())
	assert.Empty(t, sink.events)
}

func TestBridge_SinkFailureEntersFallbackMode(t *testing.T) {
	sink := &recordSink{sendErr: errors.New("pipe closed")}
	b := NewBridge(newMemStore(), sink, 15*time.Second, zap.NewNop())
	ctx := context.Background()
	start := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	b.Publish(domain.TelemetryEvent{ActiveMs: 1000})
	b.Flush(ctx, start)
	assert.True(t, b.Fallback())

	// During the cooldown the sink is not touched again.
	sink.sendErr = nil
	b.Flush(ctx, start.Add(10*time.Second))
	assert.Empty(t, sink.events)
	assert.True(t, b.Fallback())

	// After the cooldown the queued event goes out and fallback lifts.
	b.Flush(ctx, start.Add(telemetryCooldown+time.Second))
	assert.Len(t, sink.events, 1)
	assert.False(t, b.Fallback())
}
