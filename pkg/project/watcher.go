package project

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Dima2021/anaconda-project/pkg/localstate"
	"github.com/Dima2021/anaconda-project/pkg/projectfile"
	"github.com/Dima2021/anaconda-project/pkg/telemetry"
)

// ChangeEvent reports that the project's backing files changed on disk
// and the project was reloaded.
type ChangeEvent struct {
	// Path is the file that changed.
	Path string

	// Problems is the validation problem list after reload.
	Problems []string
}

// Watcher reloads the project when its backing files are edited
// outside this process. It is meant for long-running read-only
// callers (e.g. a watch CLI); it must not be combined with concurrent
// transactional edits on the same Project instance.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan ChangeEvent
	logger  *telemetry.Logger
}

// Watch starts watching the project.yml and local state files. The
// returned Watcher delivers a ChangeEvent after each external edit
// until ctx is done or Close is called.
func (p *Project) Watch(ctx context.Context, logger *telemetry.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the containing directories; editors often replace files
	// rather than writing them in place.
	dirs := []string{
		p.directory,
		filepath.Join(p.directory, localstate.Dirname),
	}
	for _, dir := range dirs {
		if err := fsWatcher.Add(dir); err != nil {
			logger.WithError(err).Warnf("failed to watch %s", dir)
		}
	}

	w := &Watcher{
		watcher: fsWatcher,
		events:  make(chan ChangeEvent, 4),
		logger:  logger.NewComponentLogger("watcher"),
	}
	go w.processEvents(ctx, p)
	return w, nil
}

// Events returns the channel of change events.
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// processEvents reloads the project on relevant file system events,
// debounced so editor save sequences produce one reload.
func (w *Watcher) processEvents(ctx context.Context, p *Project) {
	const reloadDelay = 200 * time.Millisecond
	var reloadTimer *time.Timer

	relevant := func(name string) bool {
		base := filepath.Base(name)
		return base == projectfile.Filename || base == localstate.Filename
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !relevant(event.Name) {
				continue
			}
			w.logger.Debugf("%s changed (%s)", event.Name, event.Op)
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			path := event.Name
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				p.Reload()
				select {
				case w.events <- ChangeEvent{Path: path, Problems: p.Problems()}:
				case <-ctx.Done():
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("watch error")
		}
	}
}
