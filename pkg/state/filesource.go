package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/flotilla-dev/flotilla/pkg/config"
	"github.com/flotilla-dev/flotilla/pkg/log"
	"github.com/flotilla-dev/flotilla/pkg/model"
)

const reloadDelay = 500 * time.Millisecond

// FileSource supplies the desired deployment from a configuration file on
// disk and reloads it when the file changes. Changes are announced on
// Events() so the agent can converge immediately instead of waiting for the
// next tick.
type FileSource struct {
	path    string
	parser  *config.Parser
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
	events  chan struct{}

	mu      sync.RWMutex
	current model.Deployment
}

// NewFileSource loads the configuration file and returns a source for it.
func NewFileSource(path string) (*FileSource, error) {
	parser := config.NewParser()
	deployment, err := parser.Load(path)
	if err != nil {
		return nil, err
	}

	return &FileSource{
		path:    path,
		parser:  parser,
		logger:  log.WithComponent("file-source"),
		events:  make(chan struct{}, 1),
		current: deployment,
	}, nil
}

// Desired returns the most recently loaded deployment.
func (f *FileSource) Desired(ctx context.Context) (model.Deployment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current, nil
}

// Events returns a channel that receives a notification after each
// successful reload. The channel is buffered with capacity one; bursts of
// file changes coalesce into a single notification.
func (f *FileSource) Events() <-chan struct{} {
	return f.events
}

// Watch starts watching the configuration file until ctx is cancelled.
// Editors typically replace files on save, so the parent directory is
// watched and events are filtered by name.
func (f *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	f.watcher = watcher
	go f.processEvents(ctx)

	f.logger.Info().Str("path", f.path).Msg("Watching deployment configuration")
	return nil
}

func (f *FileSource) processEvents(ctx context.Context) {
	// Debounce reload events
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = f.watcher.Close()
			return

		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.path) {
				continue
			}

			f.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Configuration file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, f.reload)

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (f *FileSource) reload() {
	deployment, err := f.parser.Load(f.path)
	if err != nil {
		// Keep serving the last good configuration.
		f.logger.Error().Err(err).Str("path", f.path).Msg("Failed to reload configuration")
		return
	}

	f.mu.Lock()
	unchanged := f.current.Equal(deployment)
	f.current = deployment
	f.mu.Unlock()

	if unchanged {
		return
	}

	f.logger.Info().Str("path", f.path).Msg("Deployment configuration reloaded")
	select {
	case f.events <- struct{}{}:
	default:
	}
}
