package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a scheduler handle whenever the schedule record changes
// on disk. The watch is directory-scoped (the record's parent, not
// recursive); only events targeting the record file trigger a reload.
type Watcher struct {
	handle   *Handle
	watcher  *fsnotify.Watcher
	fileName string
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher creates a watcher bound to the handle's schedule record.
func NewWatcher(handle *Handle, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(handle.schedulePath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch schedule directory %s: %w", dir, err)
	}

	return &Watcher{
		handle:   handle,
		watcher:  fsw,
		fileName: filepath.Base(handle.schedulePath),
		logger:   logger.With(slog.String("component", "schedule-watcher")),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins reacting to filesystem events.
func (w *Watcher) Start(ctx context.Context) error {
	go w.eventLoop(ctx)
	w.logger.Info("schedule watcher started")
	return nil
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

// eventLoop filters events down to the schedule record and reloads.
// Reload failures (malformed record mid-write) are logged, never fatal;
// the next valid write reloads cleanly.
func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("schedule watcher stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("schedule watcher stopped")
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				w.logger.Warn("watcher event channel closed")
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.logger.Warn("watcher error channel closed")
				return
			}
			w.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if filepath.Base(event.Name) != w.fileName {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.logger.Info("schedule record changed, reloading", slog.String("op", event.Op.String()))
	if err := w.handle.Reload(ctx); err != nil {
		w.logger.Error("schedule reload failed", slog.String("error", err.Error()))
	}
}
