package knowledge

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/inkrouter/ink-router/internal/pkg/logger"
)

// Watcher hot-reloads the corpus directory. File events are debounced so a
// burst of writes produces one rebuild; the rebuilt registry is swapped into
// the store atomically and a broken corpus leaves the old registry serving.
type Watcher struct {
	dir      string
	store    *Store
	debounce time.Duration
	onReload func(*Registry)

	pendingMu sync.Mutex
	timer     *time.Timer

	log *logger.Logger
}

// WatcherConfig configures a corpus watcher.
type WatcherConfig struct {
	Dir      string
	Store    *Store
	Debounce time.Duration // Default: 500ms

	// OnReload is called after each successful swap. Optional.
	OnReload func(*Registry)
}

// NewWatcher creates a corpus watcher.
func NewWatcher(cfg WatcherConfig, log *logger.Logger) *Watcher {
	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	return &Watcher{
		dir:      cfg.Dir,
		store:    cfg.Store,
		debounce: cfg.Debounce,
		onReload: cfg.OnReload,
		log:      log,
	}
}

// Start watches until ctx is cancelled. It blocks, so run it on its own
// goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.dir); err != nil {
		return err
	}

	w.log.Info("Watching corpus directory", "dir", w.dir, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if !isCorpusFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Corpus watcher error", "error", err)
		}
	}
}

func isCorpusFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func (w *Watcher) scheduleReload() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	reg, err := Load(w.dir)
	if err != nil {
		// Keep serving the previous registry.
		w.log.Error("Corpus reload failed, keeping previous registry", "error", err)
		return
	}

	w.store.Replace(reg)
	w.log.Info("Corpus reloaded",
		"pipelines", len(reg.Names()),
		"entries", reg.EntryCount(),
	)

	if w.onReload != nil {
		w.onReload(reg)
	}
}
