package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/quietloop/driftd/internal/domain"
)

// fakeSettings is a test double for domain.SettingsProvider
type fakeSettings struct {
	cfg       domain.InterventionConfig
	focus     bool
	whitelist []string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{cfg: domain.DefaultConfig()}
}

func (f *fakeSettings) Config() domain.InterventionConfig { return f.cfg }
func (f *fakeSettings) FocusMode() bool                   { return f.focus }
func (f *fakeSettings) Whitelist() []string               { return f.whitelist }

// fakeSurface records effect calls instead of touching a page
type fakeSurface struct {
	mu sync.Mutex

	bodyClasses map[string]bool
	brightness  int
	blurPx      float64
	blurred     bool
	overlay     *domain.OverlayContent
	locked      bool

	blurApplies  int
	overlayShows int
	failAll      bool
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{bodyClasses: map[string]bool{}, brightness: -1}
}

func (f *fakeSurface) err() error {
	if f.failAll {
		return errors.New("element gone")
	}
	return nil
}

func (f *fakeSurface) AddBodyClass(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return f.err()
	}
	f.bodyClasses[name] = true
	return nil
}

func (f *fakeSurface) RemoveBodyClass(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return f.err()
	}
	delete(f.bodyClasses, name)
	return nil
}

func (f *fakeSurface) SetBrightness(percent, _ int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return f.err()
	}
	f.brightness = percent
	return nil
}

func (f *fakeSurface) ApplyBlur(px float64, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return f.err()
	}
	f.blurred = true
	f.blurPx = px
	f.blurApplies++
	return nil
}

func (f *fakeSurface) ClearBlur() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return f.err()
	}
	f.blurred = false
	return nil
}

func (f *fakeSurface) ShowOverlay(content domain.OverlayContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return f.err()
	}
	f.overlay = &content
	f.overlayShows++
	return nil
}

func (f *fakeSurface) HideOverlay() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return f.err()
	}
	f.overlay = nil
	return nil
}

func (f *fakeSurface) SetScrollLock(locked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return f.err()
	}
	f.locked = locked
	return nil
}

func (f *fakeSurface) hasClass(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodyClasses[name]
}

// memStore is an in-memory domain.SnapshotStore, optionally failing
type memStore struct {
	snaps    map[string]domain.Snapshot
	setErr   error
	getErr   error
	setCalls int
}

func newMemStore() *memStore {
	return &memStore{snaps: map[string]domain.Snapshot{}}
}

func (m *memStore) Get(_ context.Context, key string) (*domain.Snapshot, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	snap, ok := m.snaps[key]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *memStore) Set(_ context.Context, key string, snap domain.Snapshot) error {
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	m.snaps[key] = snap
	return nil
}

// recordSink collects telemetry events, optionally failing
type recordSink struct {
	events  []domain.TelemetryEvent
	sendErr error
}

func (r *recordSink) Send(_ context.Context, ev domain.TelemetryEvent) error {
	if r.sendErr != nil {
		return r.sendErr
	}
	r.events = append(r.events, ev)
	return nil
}
