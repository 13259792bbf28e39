package filesystem

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/liuwenjie/api-mock-server/internal/infrastructure/ports"
)

// Watcher watches the archive file for changes and triggers a reload
// callback. Editors often replace files via rename, so the parent directory
// is watched and events are filtered to the archive path.
type Watcher struct {
	archivePath string
	debounce    time.Duration
	logger      ports.Logger
	watcher     *fsnotify.Watcher
	onReload    func()
	done        chan struct{}
	wg          sync.WaitGroup
}

// NewWatcher creates a watcher for the given archive file.
func NewWatcher(archivePath string, debounce time.Duration, logger ports.Logger, onReload func()) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(archivePath)
	if err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		archivePath: abs,
		debounce:    debounce,
		logger:      logger,
		watcher:     fsWatcher,
		onReload:    onReload,
		done:        make(chan struct{}),
	}, nil
}

// Start begins watching for file changes in a goroutine.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop terminates the watcher.
func (w *Watcher) Stop() {
	close(w.done)
	_ = w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !w.isArchive(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			w.logger.Debug("archive change detected", "file", event.Name, "op", event.Op.String())

			// Debounce: reset timer on each event.
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-timerC:
			w.logger.Info("reloading archive due to file change")
			w.onReload()
			timerC = nil
		}
	}
}

func (w *Watcher) isArchive(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return abs == w.archivePath
}
