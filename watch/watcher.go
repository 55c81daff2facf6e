// Package watch turns fsnotify activity under a project root into
// normalized capture events.
package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/xiaoyuanzhu-com/filehistory/capture"
	"github.com/xiaoyuanzhu-com/filehistory/log"
)

var logger = log.Component("watch")

// Handler consumes normalized events. *capture.Policy satisfies it.
type Handler interface {
	Handle(ev capture.Event)
	EndBurst(path string)
}

// Config configures a Watcher
type Config struct {
	Root          string
	Filter        *PathFilter
	DebounceDelay time.Duration
	MoveTTL       time.Duration
}

// Watcher recursively watches Config.Root
type Watcher struct {
	root    string
	filter  *PathFilter
	handler Handler

	fsw          *fsnotify.Watcher
	debouncer    *debouncer
	moveDetector *moveDetector
	locks        pathLocks
	sizes        sync.Map // map[string]int64, last seen size per path

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher handing events to handler. Call Start to begin.
func New(cfg Config, handler Handler) (*Watcher, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	if cfg.Filter == nil {
		cfg.Filter = DefaultPathFilter()
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultDebounceDelay
	}
	if cfg.MoveTTL <= 0 {
		cfg.MoveTTL = DefaultMoveTTL
	}

	w := &Watcher{
		root:     root,
		filter:   cfg.Filter,
		handler:  handler,
		stopChan: make(chan struct{}),
	}
	w.debouncer = newDebouncer(cfg.DebounceDelay, w.processDebounced)
	w.moveDetector = newMoveDetector(cfg.MoveTTL, w.processRemove)
	return w, nil
}

// Root returns the absolute watched root
func (w *Watcher) Root() string {
	return w.root
}

// Start begins watching
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	logger.Info().Str("root", w.root).Msg("starting filesystem watcher")

	if err := w.watchRecursive(w.root); err != nil {
		fsw.Close()
		return err
	}

	w.wg.Add(1)
	go w.eventLoop()

	logger.Info().Msg("filesystem watcher started")
	return nil
}

// Stop ends watching. Pending debounced changes and unmatched renames are
// dropped.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.debouncer.Stop()
		w.moveDetector.Clear()
		close(w.stopChan)
		if w.fsw != nil {
			w.fsw.Close()
		}
		w.wg.Wait()
		logger.Info().Msg("filesystem watcher stopped")
	})
}

func (w *Watcher) relPath(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	return rel, true
}

// watchRecursive adds dir and every non-excluded directory below it. Files
// already present are recorded for move matching.
func (w *Watcher) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}

		if rel, ok := w.relPath(path); ok && rel != "." && w.filter.IsExcluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("failed to watch directory")
			}
			return nil
		}
		if info, err := d.Info(); err == nil {
			w.sizes.Store(path, info.Size())
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Error().Err(err).Msg("watcher error")

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, ok := w.relPath(event.Name)
	if !ok || w.filter.IsExcluded(rel) {
		return
	}
	path := event.Name

	info, err := os.Stat(path)
	if err != nil {
		if event.Op&fsnotify.Rename != 0 {
			// hold the removal until the move detector gives up on it
			var size int64
			if v, ok := w.sizes.Load(path); ok {
				size = v.(int64)
			}
			w.moveDetector.TrackRename(path, size)
			return
		}
		if event.Op&fsnotify.Remove != 0 {
			w.debouncer.Queue(path, changeRemove)
		}
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			if err := w.watchRecursive(path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("failed to watch new directory")
			}
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		w.debouncer.Queue(path, changeCreate)
	case event.Op&fsnotify.Write != 0:
		w.debouncer.Queue(path, changeWrite)
	}
}

// processDebounced runs when a path's burst settles
func (w *Watcher) processDebounced(path string, c change) {
	switch c {
	case changeCreate:
		w.processCreate(path)
	case changeWrite:
		w.processWrite(path)
	case changeRemove:
		w.processRemove(path)
	}
}

func (w *Watcher) processCreate(path string) {
	mu := w.locks.lock(path)
	defer mu.Unlock()

	size, ok := w.statSize(path)
	if !ok {
		return
	}

	if oldPath, isMove := w.moveDetector.CheckMove(path, size); isMove {
		logger.Info().Str("oldPath", oldPath).Str("newPath", path).Msg("detected file move")
		w.sizes.Delete(oldPath)
		w.locks.forget(oldPath)
		w.handler.Handle(capture.Event{Kind: capture.Renamed, OldPath: oldPath, Path: path})
		return
	}

	logger.Debug().Str("path", path).Msg("detected file creation")
	w.handler.Handle(capture.Event{Kind: capture.Created, Doc: capture.FileDocument(path), Path: path})
	w.handler.EndBurst(path)
}

func (w *Watcher) processWrite(path string) {
	mu := w.locks.lock(path)
	defer mu.Unlock()

	if _, ok := w.statSize(path); !ok {
		return
	}

	logger.Debug().Str("path", path).Msg("detected file modification")
	w.handler.Handle(capture.Event{Kind: capture.Edited, Doc: capture.FileDocument(path), Path: path})
	w.handler.EndBurst(path)
}

func (w *Watcher) processRemove(path string) {
	mu := w.locks.lock(path)
	defer mu.Unlock()

	// the path may have been recreated while the removal was pending
	if _, err := os.Stat(path); err == nil {
		return
	}

	logger.Info().Str("path", path).Msg("detected file removal")
	w.sizes.Delete(path)
	w.handler.Handle(capture.Event{Kind: capture.Removed, Path: path})
	w.locks.forget(path)
}

// statSize records and returns the current size of a regular file
func (w *Watcher) statSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Err(err).Str("path", path).Msg("failed to stat changed file")
		}
		return 0, false
	}
	if !info.Mode().IsRegular() {
		return 0, false
	}
	w.sizes.Store(path, info.Size())
	return info.Size(), true
}
