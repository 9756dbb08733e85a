package registry

import (
	"context"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the burst of filesystem events editors emit on
// save into a single reload.
const debounceWindow = 250 * time.Millisecond

// Watch reloads the catalog whenever its backing file changes. It blocks
// until ctx is cancelled and is a no-op for registries without a backing
// file.
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(r.path); err != nil {
		return err
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			if err := r.Reload(); err != nil {
				// Keep serving the last good catalog.
				log.Printf("[registry] reload failed: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[registry] watch error: %v", err)
		}
	}
}
