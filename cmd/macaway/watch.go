package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Elec3137/macaway/internal/util"
)

const reloadDebounce = 250 * time.Millisecond

// startConfigWatch watches the config file's directory, so editors that
// replace the file still trigger a reload. The returned func stops the watch.
func startConfigWatch(logger *util.Logger, path string, reloadRequests chan<- string) (func(), error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	target = filepath.Clean(target)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}
	go watchConfig(logger, watcher, target, reloadDebounce, reloadRequests)
	return func() { watcher.Close() }, nil
}

func watchConfig(logger *util.Logger, watcher *fsnotify.Watcher, target string, debounce time.Duration, reloadRequests chan<- string) {
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			logger.Tracef("config event %s", event)
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerCh = timer.C
				continue
			}
			if !timer.Stop() {
				<-timerCh
			}
			timer.Reset(debounce)
		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case reloadRequests <- "config file updated":
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("config watcher error: %v", err)
		}
	}
}
