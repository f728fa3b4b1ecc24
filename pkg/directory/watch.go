package directory

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fallbackPollInterval is the safety-net reload interval used when file
// events are unavailable or missed (editors that replace-by-rename can
// drop the watch).
const fallbackPollInterval = 60 * time.Second

// Watch reloads the registry whenever its file changes on disk, with a
// periodic poll as a safety net. It blocks until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.watchPoll(ctx, logger)
		return
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(r.path); err != nil {
		// File may not exist yet; fall back to polling.
		r.watchPoll(ctx, logger)
		return
	}

	ticker := time.NewTicker(fallbackPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-watcher.Events:
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.Reload(); err != nil {
				logger.Warn("registry reload failed", "path", r.path, "error", err)
			}
			// Re-add after rename: the watch follows the old inode.
			if ev.Op&fsnotify.Rename != 0 {
				_ = watcher.Add(r.path)
			}
		case err := <-watcher.Errors:
			if err != nil {
				logger.Warn("registry watch error", "error", err)
			}
		case <-ticker.C:
			if err := r.Reload(); err != nil {
				logger.Warn("registry reload failed", "path", r.path, "error", err)
			}
		}
	}
}

// watchPoll is the pure-polling fallback when fsnotify is unavailable.
func (r *Registry) watchPoll(ctx context.Context, logger *slog.Logger) {
	ticker := time.NewTicker(fallbackPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Reload(); err != nil {
				logger.Warn("registry reload failed", "path", r.path, "error", err)
			}
		}
	}
}
