package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// debounce collapses the burst of events editors emit for one save.
const debounce = 250 * time.Millisecond

// Applier receives reloaded configurations.
// *runtime.Services satisfies it.
type Applier interface {
	SetHarvestConfig(cfg *domain.HarvestConfig)
}

// WatcherConfig holds configuration for the Watcher
type WatcherConfig struct {
	Path    string
	Applier Applier
	Logger  *slog.Logger
}

// Watcher reloads the harvest config file whenever it changes.
// A file that fails to parse is logged and the previous config stays active.
type Watcher struct {
	path    string
	applier Applier
	logger  *slog.Logger
}

// NewWatcher creates a watcher for one config file.
func NewWatcher(cfg WatcherConfig) *Watcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:    filepath.Clean(cfg.Path),
		applier: cfg.Applier,
		logger:  logger,
	}
}

// Start watches the file's directory until ctx is done.
// The directory is watched so atomic saves (write temp, rename) are seen.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	go w.loop(ctx, fw)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer fw.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case evt, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != w.path {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.Reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

// Reload loads the file now and applies it when valid.
func (w *Watcher) Reload() bool {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config", "path", w.path, "error", err)
		return false
	}

	w.applier.SetHarvestConfig(cfg)
	w.logger.Info("harvest config reloaded",
		"path", w.path,
		"cities", len(cfg.Cities),
		"query_patterns", len(cfg.QueryPatterns),
	)
	return true
}
