package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/logger"
	"github.com/orbit-sync/transferd/internal/core/model"
)

// maxPendingFilesystemEvents bounds the consumer queue between the fsnotify
// callback and the dispatcher; events are dropped and logged on overflow
// rather than blocking the watcher.
const maxPendingFilesystemEvents = 1000

// FilesystemMonitor watches every active filesystem-event
// template's watch_path and dispatches a job for each matching, non-
// directory fsnotify event.
type FilesystemMonitor struct {
	dispatcher *Dispatcher

	mu    sync.Mutex
	rw    *recursiveWatcher
	roots []string

	pending chan Event
	logger  *zap.Logger
}

// NewFilesystemMonitor creates a FilesystemMonitor that dispatches matches
// through d.
func NewFilesystemMonitor(d *Dispatcher) *FilesystemMonitor {
	return &FilesystemMonitor{
		dispatcher: d,
		pending:    make(chan Event, maxPendingFilesystemEvents),
		logger:     logger.Named("monitor.filesystem"),
	}
}

// Start loads every active filesystem template's watch_path, subscribes to
// it, and runs until ctx is cancelled.
func (m *FilesystemMonitor) Start(ctx context.Context) error {
	rw, err := newRecursiveWatcher()
	if err != nil {
		return err
	}

	templates, err := m.dispatcher.Templates.ListActiveByEventType(ctx, model.EventTypeFilesystem)
	if err != nil {
		_ = rw.Close()
		return err
	}

	m.mu.Lock()
	m.rw = rw
	seen := map[string]bool{}
	for _, tmpl := range templates {
		root := tmpl.SourceConfig.WatchPath
		if root == "" || seen[root] {
			continue
		}
		seen[root] = true
		if err := rw.Add(root); err != nil {
			m.logger.Error("failed to watch path", zap.String("path", root), zap.Error(err))
			continue
		}
		m.roots = append(m.roots, root)
	}
	m.mu.Unlock()

	go m.consume(ctx)
	m.watchLoop(ctx, rw)
	return nil
}

// Stop closes the underlying fsnotify subscription.
func (m *FilesystemMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rw != nil {
		_ = m.rw.Close()
		m.rw = nil
	}
}

func (m *FilesystemMonitor) watchLoop(ctx context.Context, rw *recursiveWatcher) {
	for {
		select {
		case <-ctx.Done():
			_ = rw.Close()
			return
		case event, ok := <-rw.Events():
			if !ok {
				return
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			m.handleEvent(event)
		case err, ok := <-rw.Errors():
			if !ok {
				return
			}
			m.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (m *FilesystemMonitor) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return
	}

	m.mu.Lock()
	roots := m.roots
	m.mu.Unlock()

	for _, root := range roots {
		rel, err := filepath.Rel(root, event.Name)
		if err != nil || len(rel) >= 2 && rel[:2] == ".." {
			continue
		}

		ev := Event{
			EventType:  model.EventTypeFilesystem,
			FilePath:   event.Name,
			FileName:   filepath.Base(event.Name),
			FileSize:   info.Size(),
			ModifiedAt: info.ModTime(),
			EventTime:  time.Now(),
			WatchRoot:  root,
		}

		select {
		case m.pending <- ev:
		default:
			m.logger.Warn("dropping filesystem event, queue full", zap.String("path", event.Name))
		}
	}
}

func (m *FilesystemMonitor) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.pending:
			m.dispatcher.Dispatch(ctx, ev)
		}
	}
}
