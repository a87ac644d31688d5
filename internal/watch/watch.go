// Package watch triggers backup passes when the backup root changes.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RunFunc executes one full backup pass. Passes stay strictly sequential:
// the watcher runs the next one only after the previous returned.
type RunFunc func(ctx context.Context) error

// Watch starts an fsnotify watcher on the backup root and its immediate
// subdirectories and runs a backup pass, debounced, whenever something
// changes. New directories dropped into the root are added to the watch
// list so the files copied into them keep resetting the debounce window —
// a pass should start only once a drop has settled.
func Watch(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, run RunFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirs(w, root); err != nil {
		return err
	}

	logger.Info("watch: started",
		slog.String("root", root),
		slog.Duration("debounce", debounce))

	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watch: stopped")
			return nil

		case <-fire:
			logger.Info("watch: change settled, running backup pass")
			if err := run(ctx); err != nil {
				logger.Error("watch: backup pass failed", slog.String("error", err.Error()))
			}
			// Directories may have appeared or vanished during the pass.
			if err := addDirs(w, root); err != nil {
				logger.Warn("watch: rescan failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && filepath.Dir(ev.Name) == root {
					if err := w.Add(ev.Name); err != nil {
						logger.Warn("watch: add dir failed",
							slog.String("dir", ev.Name),
							slog.String("error", err.Error()))
					}
				}
			}
			logger.Debug("watch: event",
				slog.String("op", ev.Op.String()),
				slog.String("name", ev.Name))
			schedule()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: watcher error", slog.String("error", err.Error()))
		}
	}
}

// addDirs watches the root and its immediate subdirectories.
func addDirs(w *fsnotify.Watcher, root string) error {
	if err := w.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		// Re-adding an already watched directory is a no-op.
		if err := w.Add(filepath.Join(root, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
