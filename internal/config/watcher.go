package config

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const pollInterval = 60 * time.Second

// StartWatcher monitors the config file for changes and reloads the store.
// fsnotify is the primary mechanism; a slow mtime poll runs alongside it as a
// safety net for editors and filesystems that don't emit events.
func (s *Store) StartWatcher(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	useEvents := err == nil
	if err != nil {
		log.Printf("[WARN] Config Watcher: fsnotify unavailable (%v), polling only", err)
	} else if err := watcher.Add(s.path); err != nil {
		log.Printf("[WARN] Config Watcher: cannot watch %s (%v), polling only", s.path, err)
		watcher.Close()
		useEvents = false
	}

	if useEvents {
		go func() {
			defer watcher.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						// Editors often write in bursts; let the file settle.
						time.Sleep(100 * time.Millisecond)
						s.Reload()
					}
				case werr, ok := <-watcher.Errors:
					if !ok {
						return
					}
					log.Printf("[WARN] Config Watcher: %v", werr)
				}
			}
		}()
	}

	go func() {
		var mu sync.Mutex
		lastMtime := s.statMtime()
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mu.Lock()
				mtime := s.statMtime()
				if !mtime.IsZero() && mtime != lastMtime {
					lastMtime = mtime
					s.Reload()
				}
				mu.Unlock()
			}
		}
	}()
}

func (s *Store) statMtime() time.Time {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
