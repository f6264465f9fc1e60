package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ClientWatcher reloads a client config file when it changes on disk.
type ClientWatcher struct {
	path     string
	debounce time.Duration
	w        *fsnotify.Watcher
}

// NewClientWatcher starts watching the directory holding path. Watching the
// directory rather than the file survives editors that replace it on save.
func NewClientWatcher(path string, debounce time.Duration) (*ClientWatcher, error) {
	if path == "" {
		path = DefaultClientPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &ClientWatcher{path: abs, debounce: debounce, w: w}, nil
}

// Run calls onChange with the reloaded config after each burst of writes,
// until ctx is done.
func (cw *ClientWatcher) Run(ctx context.Context, onChange func(ClientConfig)) {
	defer cw.w.Close()
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-cw.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || filepath.Base(ev.Name) != filepath.Base(cw.path) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(cw.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(cw.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			cfg, err := LoadClientConfig(cw.path)
			if err != nil {
				log.Printf("[CONFIG] reload %s failed: %v", cw.path, err)
				continue
			}
			log.Printf("[CONFIG] reloaded %s", cw.path)
			onChange(cfg)
		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}
			log.Printf("[CONFIG] watch error: %v", err)
		}
	}
}
