package infra

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/quietloop/driftd/internal/domain"
)

// SettingsFile is the on-disk shape of driftd.yaml.
type SettingsFile struct {
	Config    domain.InterventionConfig `yaml:"config"`
	FocusMode bool                      `yaml:"focus_mode"`
	Whitelist []string                  `yaml:"whitelist"`
}

// FileSettings implements domain.SettingsProvider backed by a yaml file.
// A missing or malformed file falls back to built-in defaults; it is
// never fatal. Watch pushes live reloads when the file changes.
type FileSettings struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	current SettingsFile
}

// NewFileSettings loads settings from path, falling back to defaults.
func NewFileSettings(path string, logger *zap.Logger) *FileSettings {
	s := &FileSettings{path: path, logger: logger}
	s.reload()
	return s
}

// reload re-reads the file. Partial configs are fine: Normalize fills
// every missing field from defaults.
func (s *FileSettings) reload() {
	loaded := SettingsFile{Config: domain.DefaultConfig()}

	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		s.logger.Debug("settings file absent, using defaults", zap.String("path", s.path))
	case err != nil:
		s.logger.Warn("settings file unreadable, using defaults",
			zap.String("path", s.path), zap.Error(err))
	default:
		// Unmarshal over a defaults-seeded struct so keys absent from
		// the file keep their defaults instead of zeroing out.
		parsed := SettingsFile{Config: domain.DefaultConfig()}
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			s.logger.Warn("settings file malformed, using defaults",
				zap.String("path", s.path), zap.Error(err))
		} else {
			loaded = parsed
		}
	}

	loaded.Config.Normalize()

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
}

// Watch reloads settings whenever the file changes, until the context
// is canceled. Runs its own goroutine; call once.
func (s *FileSettings) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory, not the file: editors replace files on save
	// and a watch on the old inode would go quiet.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != s.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					s.logger.Info("settings file changed, reloading")
					s.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("settings watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Config returns the current normalized intervention config.
func (s *FileSettings) Config() domain.InterventionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Config
}

// FocusMode reports the user's focus-mode flag.
func (s *FileSettings) FocusMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.FocusMode
}

// Whitelist returns domains for which the engine is disabled.
func (s *FileSettings) Whitelist() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.current.Whitelist))
	copy(out, s.current.Whitelist)
	return out
}

// Ensure FileSettings implements domain.SettingsProvider.
var _ domain.SettingsProvider = (*FileSettings)(nil)

// StaticSettings is a fixed in-memory provider, used by simulate and by
// callers that receive config pushes over the wire.
type StaticSettings struct {
	mu        sync.RWMutex
	config    domain.InterventionConfig
	focusMode bool
	whitelist []string
}

// NewStaticSettings creates a provider holding cfg (normalized).
func NewStaticSettings(cfg domain.InterventionConfig) *StaticSettings {
	cfg.Normalize()
	return &StaticSettings{config: cfg}
}

// Update replaces the held config, e.g. from a config-push frame.
func (s *StaticSettings) Update(cfg domain.InterventionConfig, focusMode bool, whitelist []string) {
	cfg.Normalize()
	s.mu.Lock()
	s.config = cfg
	s.focusMode = focusMode
	s.whitelist = whitelist
	s.mu.Unlock()
}

// SetFocusMode flips just the focus-mode flag.
func (s *StaticSettings) SetFocusMode(on bool) {
	s.mu.Lock()
	s.focusMode = on
	s.mu.Unlock()
}

func (s *StaticSettings) Config() domain.InterventionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *StaticSettings) FocusMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focusMode
}

func (s *StaticSettings) Whitelist() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.whitelist))
	copy(out, s.whitelist)
	return out
}

var _ domain.SettingsProvider = (*StaticSettings)(nil)
