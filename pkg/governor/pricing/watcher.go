package pricing

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the rate table when the config file changes on disk,
// so pricing updates take effect without a restart.
//
// Events are debounced: editors and config management tools typically
// emit several write events per save.
type Watcher struct {
	path     string
	table    *Table
	load     func(path string) (map[ModelID]float64, error)
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher that reloads rates for table from path
// using the load function whenever the file changes.
func NewWatcher(path string, table *Table, load func(path string) (map[ModelID]float64, error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory rather than the file itself: atomic saves
	// (write temp file, rename over target) replace the inode and would
	// silently detach a file-level watch.
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		path:     path,
		table:    table,
		load:     load,
		watcher:  fsw,
		logger:   slog.Default().With("component", "pricing.watcher"),
		debounce: 250 * time.Millisecond,
		done:     make(chan struct{}),
	}

	go w.run()

	return w, nil
}

// run consumes filesystem events until Stop is called.
func (w *Watcher) run() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// reload loads rates from disk and applies them to the table.
// A load failure keeps the previous rates.
func (w *Watcher) reload() {
	rates, err := w.load(w.path)
	if err != nil {
		w.logger.Warn("pricing reload failed, keeping previous rates",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.table.UpdateRates(rates)
	w.logger.Info("pricing rates reloaded", "path", w.path, "models", len(rates))
}

// Stop stops watching. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}
