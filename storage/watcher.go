package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/EclipseEmu/eclipsekit/host"
)

// CheatWatcher reloads a cheat list when it changes on disk and emits the
// result as a replace-all update.
type CheatWatcher struct {
	path     string
	debounce time.Duration
	log      *slog.Logger

	watcher *fsnotify.Watcher
	updates chan host.CheatUpdate
	errs    chan error
	done    chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// WatchCheats starts watching path. A nil logger uses slog.Default.
func WatchCheats(path string, log *slog.Logger) (*CheatWatcher, error) {
	if log == nil {
		log = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// the directory is watched so atomic renames over the file are seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch directory: %w", err)
	}

	w := &CheatWatcher{
		path:     path,
		debounce: 100 * time.Millisecond,
		log:      log.With("cheats", path),
		watcher:  watcher,
		updates:  make(chan host.CheatUpdate, 1),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.watchLoop()
	return w, nil
}

// Updates delivers the latest cheat list after each change. Only the newest
// pending update is kept.
func (w *CheatWatcher) Updates() <-chan host.CheatUpdate {
	return w.updates
}

// Errors delivers reload failures.
func (w *CheatWatcher) Errors() <-chan error {
	return w.errs
}

// Close stops watching.
func (w *CheatWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *CheatWatcher) watchLoop() {
	defer w.wg.Done()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

func (w *CheatWatcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	f, err := LoadCheats(w.path)
	if err != nil {
		w.log.Warn("cheat list reload failed", "err", err)
		w.report(fmt.Errorf("reload cheats: %w", err))
		return
	}
	w.log.Debug("cheat list reloaded", "count", len(f.Cheats))

	u := f.Update()
	for {
		select {
		case <-w.done:
			return
		case w.updates <- u:
			return
		default:
		}
		// drop the stale pending update
		select {
		case <-w.updates:
		default:
		}
	}
}

func (w *CheatWatcher) report(err error) {
	select {
	case w.errs <- err:
	default:
	}
}
