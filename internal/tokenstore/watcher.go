package tokenstore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/PrefectHQ/fastmcp/pkg/logging"
)

// DefaultWatchInterval is the fallback polling interval when fsnotify is
// unavailable.
const DefaultWatchInterval = 30 * time.Second

// DefaultDebounceInterval is the time to wait after the last file change
// before notifying the change callback.
const DefaultDebounceInterval = 500 * time.Millisecond

// WatcherConfig holds configuration for the token file watcher.
type WatcherConfig struct {
	// WatchInterval is the fallback polling interval when fsnotify is not
	// available.
	WatchInterval time.Duration

	// OnChange is called, debounced, after token files change on disk.
	OnChange func()
}

// Watcher monitors the token storage directory for changes made by other
// processes (a second CLI instance refreshing a token, a logout elsewhere)
// and invalidates the store's in-memory cache so the next read sees what was
// written. It uses fsnotify with a fallback to polling for environments
// where fsnotify is not available or reliable.
type Watcher struct {
	mu sync.Mutex

	store  *Store
	config WatcherConfig

	// fsWatcher is the fsnotify watcher (nil when falling back to polling)
	fsWatcher *fsnotify.Watcher

	// stopCh signals the watcher to stop
	stopCh chan struct{}

	// running indicates if the watcher is active
	running bool

	// lastModTimes tracks modification times for fallback polling
	lastModTimes map[string]time.Time

	// debounceTimer coalesces rapid successive changes
	debounceTimer *time.Timer
	debounceMu    sync.Mutex
}

// NewWatcher creates a watcher for the store's storage directory. The store
// must be in file mode for watching to be meaningful.
func NewWatcher(store *Store, config WatcherConfig) *Watcher {
	if config.WatchInterval == 0 {
		config.WatchInterval = DefaultWatchInterval
	}

	return &Watcher{
		store:        store,
		config:       config,
		lastModTimes: make(map[string]time.Time),
	}
}

// Start begins watching for token file changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.stopCh = make(chan struct{})
	w.running = true

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("TokenStore", "fsnotify not available, falling back to polling: %v", err)
		go w.pollForChanges()
		return nil
	}

	w.fsWatcher = watcher

	if err := w.fsWatcher.Add(w.store.StorageDir()); err != nil {
		logging.Warn("TokenStore", "Failed to watch directory %s, falling back to polling: %v",
			w.store.StorageDir(), err)
		w.fsWatcher.Close()
		w.fsWatcher = nil
		go w.pollForChanges()
		return nil
	}

	// Capture channels before releasing the lock to avoid racing Stop()
	eventsCh := w.fsWatcher.Events
	errorsCh := w.fsWatcher.Errors

	go w.processEvents(eventsCh, errorsCh)

	logging.Debug("TokenStore", "Started watching %s for token changes", w.store.StorageDir())
	return nil
}

// processEvents handles fsnotify events.
// The channels are passed as parameters to avoid race conditions with Stop().
func (w *Watcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("TokenStore", err, "fsnotify error")
		}
	}
}

// handleEvent processes a single fsnotify event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	fileName := filepath.Base(event.Name)
	if filepath.Ext(fileName) != ".json" {
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// Invalidation is cheap and idempotent, so it happens per event; only
	// the notification callback is debounced.
	w.store.invalidateKey(strings.TrimSuffix(fileName, ".json"))

	logging.Debug("TokenStore", "Token file changed externally: %s", fileName)
	w.notifyDebounced()
}

// notifyDebounced invokes OnChange after a quiet period, preventing a storm
// of callbacks when several files change at once.
func (w *Watcher) notifyDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(DefaultDebounceInterval, func() {
		w.mu.Lock()
		running := w.running
		callback := w.config.OnChange
		w.mu.Unlock()

		if running && callback != nil {
			callback()
		}
	})
}

// pollForChanges implements fallback polling when fsnotify is not available.
func (w *Watcher) pollForChanges() {
	ticker := time.NewTicker(w.config.WatchInterval)
	defer ticker.Stop()

	w.updateModTimes()

	for {
		select {
		case <-w.stopCh:
			return

		case <-ticker.C:
			if changed := w.checkForChanges(); len(changed) > 0 {
				logging.Debug("TokenStore", "Token file changes detected via polling")
				for _, key := range changed {
					w.store.invalidateKey(key)
				}
				w.notifyDebounced()
			}
		}
	}
}

// updateModTimes records the current modification times of all token files.
func (w *Watcher) updateModTimes() {
	for file, modTime := range w.scanModTimes() {
		w.lastModTimes[file] = modTime
	}
}

// checkForChanges compares modification times against the last scan and
// returns the record keys of changed or removed files.
func (w *Watcher) checkForChanges() []string {
	current := w.scanModTimes()

	var changed []string
	for file, modTime := range current {
		if last, exists := w.lastModTimes[file]; !exists || modTime.After(last) {
			changed = append(changed, strings.TrimSuffix(filepath.Base(file), ".json"))
		}
	}
	for file := range w.lastModTimes {
		if _, exists := current[file]; !exists {
			changed = append(changed, strings.TrimSuffix(filepath.Base(file), ".json"))
		}
	}

	w.lastModTimes = current
	return changed
}

// scanModTimes reads the modification time of every token file.
func (w *Watcher) scanModTimes() map[string]time.Time {
	modTimes := make(map[string]time.Time)

	entries, err := os.ReadDir(w.store.StorageDir())
	if err != nil {
		return modTimes
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		modTimes[filepath.Join(w.store.StorageDir(), entry.Name())] = info.ModTime()
	}

	return modTimes
}

// Stop gracefully stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if w.fsWatcher != nil {
		if err := w.fsWatcher.Close(); err != nil {
			logging.Warn("TokenStore", "Error closing fsnotify watcher: %v", err)
		}
		w.fsWatcher = nil
	}

	logging.Debug("TokenStore", "Stopped token file watcher")
	return nil
}

// IsRunning returns whether the watcher is currently active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
