// Package watch turns writes to a trigger file into sync requests.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TriggerCallback is called once per burst of writes to the trigger file
type TriggerCallback func()

// TriggerWatcher monitors a single file. The parent directory is
// watched so the file may be created, replaced or removed freely.
type TriggerWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	callback TriggerCallback
	debounce time.Duration
	logger   *log.Logger

	timer *time.Timer
	mu    sync.Mutex
}

// NewTriggerWatcher creates a watcher for path, creating its directory
// when missing
func NewTriggerWatcher(path string, callback TriggerCallback, logger *log.Logger) (*TriggerWatcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating trigger directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &TriggerWatcher{
		path:     path,
		watcher:  watcher,
		callback: callback,
		debounce: 500 * time.Millisecond, // Debounce rapid writes
		logger:   logger,
	}, nil
}

// Run delivers trigger events until ctx is done
func (tw *TriggerWatcher) Run(ctx context.Context) error {
	defer tw.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			tw.mu.Lock()
			if tw.timer != nil {
				tw.timer.Stop()
			}
			tw.mu.Unlock()
			return nil
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return nil
			}
			tw.handleEvent(event)
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return nil
			}
			// Log error but continue watching
			tw.logger.Printf("trigger watcher: %v", err)
		}
	}
}

func (tw *TriggerWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != tw.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timer != nil {
		tw.timer.Stop()
	}
	tw.timer = time.AfterFunc(tw.debounce, tw.fire)
}

func (tw *TriggerWatcher) fire() {
	tw.logger.Printf("trigger file %s touched", tw.path)
	if tw.callback != nil {
		tw.callback()
	}
}

// SetDebounce sets the debounce duration for batching writes
func (tw *TriggerWatcher) SetDebounce(d time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.debounce = d
}

// Touch writes the current time to the trigger file at path
func Touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating trigger directory: %w", err)
	}
	stamp := time.Now().UTC().Format(time.RFC3339Nano) + "\n"
	return os.WriteFile(path, []byte(stamp), 0644)
}
