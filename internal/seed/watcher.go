package seed

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/folio/internal/storage"
)

// QuietPeriod is how long the watcher waits after the last file event
// before re-syncing.
const QuietPeriod = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the seed directory and re-syncs after
// each burst of changes until ctx is cancelled. onSync, if non-nil, is
// called after every pass.
//
// New directories created at runtime are automatically added to the watch
// list.
func (s *Syncer) Watch(ctx context.Context, onSync func(Report)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := s.files.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	s.logger.Info("watcher: started", slog.String("root", root))

	var syncTimer *time.Timer
	var syncCh <-chan time.Time
	scheduleSync := func() {
		if syncTimer == nil {
			syncTimer = time.NewTimer(QuietPeriod)
			syncCh = syncTimer.C
		} else {
			syncTimer.Reset(QuietPeriod)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if syncTimer != nil {
				syncTimer.Stop()
			}
			s.logger.Info("watcher: stopped")
			return nil

		case <-syncCh:
			rep, err := s.Sync(ctx)
			if err != nil {
				s.logger.Warn("watcher: sync failed", slog.String("error", err.Error()))
				continue
			}
			if onSync != nil {
				onSync(rep)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						s.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					scheduleSync()
					continue
				}
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, storage.Ext) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleSync()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
