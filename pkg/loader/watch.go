package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the result of every reload triggered by Watch.
type ReloadFunc func(count int, err error)

// Watch reloads dir whenever a definition file in it is written, created,
// renamed or removed, and blocks until ctx is done. Bursts of events within
// the debounce window cause a single reload.
func (l *Loader) Watch(ctx context.Context, dir string, onReload ReloadFunc) error {
	if dir == "" {
		dir = DefaultDir
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	l.logger.Info().Str("dir", dir).Msg("watching definition files")

	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isDefinitionEvent(event) {
				continue
			}

			l.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("definition file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(l.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				count, err := l.Reload(ctx, dir)
				if err != nil {
					l.logger.Error().Err(err).Msg("failed to reload factories")
				}
				if onReload != nil {
					onReload(count, err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Error().Err(err).Msg("watcher error")
		}
	}
}

func isDefinitionEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	return !strings.HasPrefix(base, ".") && FormatOf(base) != ""
}
