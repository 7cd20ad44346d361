package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a YAML configuration file whenever it changes.
type Watcher struct {
	fw     *fsnotify.Watcher
	path   string
	fn     func(Config)
	logger *slog.Logger
	wg     sync.WaitGroup
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WatchLogger sets the logger reporting reloads and invalid files.
func WatchLogger(l *slog.Logger) WatchOption {
	return func(w *Watcher) { w.logger = l }
}

// Watch starts watching the YAML file at path. Every write, create or
// rename of the file reloads it through LoadFile and hands the result to
// fn. Invalid files are logged and skipped, so fn only sees valid
// configurations. The watch is active when Watch returns.
func Watch(path string, fn func(Config), opts ...WatchOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating watcher: %w", err)
	}
	// Editors replace files, so the directory is watched instead.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}
	w := &Watcher{fw: fw, path: filepath.Clean(path), fn: fn, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			cfg, err := LoadFile(w.path)
			if err != nil {
				w.logger.Warn("config: reload failed", "path", w.path, "error", err)
				continue
			}
			w.logger.Info("config: reloaded", "path", w.path)
			w.fn(cfg)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("config: watcher error", "path", w.path, "error", err)
		}
	}
}

// Close stops watching and waits for a running reload to finish.
func (w *Watcher) Close() error {
	err := w.fw.Close()
	w.wg.Wait()
	return err
}
