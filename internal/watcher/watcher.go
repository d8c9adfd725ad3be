// Package watcher reloads the catalog when manifest files change on disk.
// It watches the configured catalog directories, debounces event bursts
// (editors tend to write, rename, and chmod in quick succession) and asks
// the reloader for a single reload per settled batch.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/alverad/inout/internal/config"
	"github.com/alverad/inout/internal/logger"
)

var log = logger.ForComponent("watcher")

// Reloader is what a flush triggers; satisfied by catalog.Loader.
type Reloader interface {
	Reload() error
}

type Watcher struct {
	config      config.WatcherConfig
	fsWatcher   *fsnotify.Watcher
	fsWatcherMu sync.Mutex
	debouncer   *Debouncer
	reloader    Reloader
	mu          sync.Mutex
	running     bool
	ctx         context.Context
	cancel      context.CancelFunc
}

func New(cfg config.WatcherConfig, reloader Reloader) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:    cfg,
		fsWatcher: fsWatcher,
		reloader:  reloader,
	}
	w.debouncer = NewDebouncer(cfg.DebounceWindow, cfg.MaxBatchSize, w.onFlush)

	return w, nil
}

// AddDir starts watching one catalog directory. Manifests live directly in
// the directory, so no recursive walk is needed.
func (w *Watcher) AddDir(path string) error {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()

	if err := w.fsWatcher.Add(path); err != nil {
		return err
	}

	log.Info("watching catalog dir", "path", path)
	return nil
}

func (w *Watcher) RemoveDir(path string) {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	w.fsWatcher.Remove(path)
}

func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	w.running = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	go w.handleEvents()

	log.Info("catalog watcher started")
	return nil
}

func (w *Watcher) handleEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			log.Debug("file event", "path", event.Name, "op", event.Op.String())

			fileEvent := w.convertEvent(event)
			if fileEvent != nil {
				w.debouncer.Add(*fileEvent)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) convertEvent(event fsnotify.Event) *FileEvent {
	if w.shouldIgnore(event.Name) {
		return nil
	}

	var eventType EventType

	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
	case event.Has(fsnotify.Write):
		eventType = EventModify
	case event.Has(fsnotify.Remove):
		eventType = EventDelete
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	default:
		return nil
	}

	return &FileEvent{
		Path:      event.Name,
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

// onFlush reloads once per settled batch. Which manifests changed does not
// matter; the loader re-reads every directory anyway.
func (w *Watcher) onFlush(events []FileEvent) {
	log.Info("manifest changes settled", "count", len(events))

	if err := w.reloader.Reload(); err != nil {
		log.Error("catalog reload failed", "error", err)
	}
}

// shouldIgnore filters out everything that is not a manifest, plus
// anything matching the configured ignore patterns (editor temp files
// mostly).
func (w *Watcher) shouldIgnore(path string) bool {
	basename := filepath.Base(path)

	if strings.HasPrefix(basename, ".") {
		return true
	}

	if !strings.HasSuffix(basename, ".yaml") && !strings.HasSuffix(basename, ".yml") {
		return true
	}

	for _, pattern := range w.config.IgnorePatterns {
		if match, _ := doublestar.Match(pattern, path); match {
			return true
		}
	}

	return false
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}

	w.running = false
	w.cancel()
	w.mu.Unlock()

	w.debouncer.Stop()

	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Close()
}
