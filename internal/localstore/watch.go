package localstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the burst of WAL writes one commit causes.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watch calls onChange whenever the database files (the main file, -wal or
// -journal) are written, by any connection including s itself, so onChange
// must tolerate firing after its own commits. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("localstore: create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: SQLite creates and removes the side files.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("localstore: watch %s: %w", filepath.Dir(s.path), err)
	}

	base := filepath.Base(s.path)
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, onChange)
			mu.Unlock()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("localstore: watch: %w", err)
		}
	}
}
