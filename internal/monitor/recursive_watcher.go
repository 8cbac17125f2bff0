package monitor

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/errs"
	"github.com/orbit-sync/transferd/internal/core/logger"
)

// recursiveWatcher wraps fsnotify.Watcher to provide recursive directory
// watching and reference counting for shared paths, so two templates
// watching overlapping directory trees don't fight over the same fsnotify
// subscription.
type recursiveWatcher struct {
	fsWatcher *fsnotify.Watcher
	logger    *zap.Logger
	mu        sync.Mutex

	// watchedDirs tracks usage count for each directory path.
	watchedDirs map[string]int

	events chan fsnotify.Event
	errors chan error

	done chan struct{}
}

func newRecursiveWatcher() (*recursiveWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	rw := &recursiveWatcher{
		fsWatcher:   fsWatcher,
		logger:      logger.Named("monitor.fswatch"),
		watchedDirs: make(map[string]int),
		events:      make(chan fsnotify.Event),
		errors:      make(chan error),
		done:        make(chan struct{}),
	}

	go rw.loop()

	return rw, nil
}

func (rw *recursiveWatcher) Events() chan fsnotify.Event { return rw.events }
func (rw *recursiveWatcher) Errors() chan error          { return rw.errors }

func (rw *recursiveWatcher) Close() error {
	close(rw.done)
	return rw.fsWatcher.Close()
}

// Add recursively watches root and its subdirectories.
func (rw *recursiveWatcher) Add(root string) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errs.ConstError("path is not a directory")
	}

	return rw.addRecursiveLocked(root)
}

// Remove stops watching root and every subdirectory still tracked under it.
func (rw *recursiveWatcher) Remove(root string) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	root = filepath.Clean(root)
	for p := range rw.watchedDirs {
		if p == root || strings.HasPrefix(p, root+string(os.PathSeparator)) {
			rw.removeDirLocked(p)
		}
	}
	return nil
}

func (rw *recursiveWatcher) addRecursiveLocked(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			rw.logger.Warn("error walking path", zap.String("path", p), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			return rw.addDirLocked(p)
		}
		return nil
	})
}

func (rw *recursiveWatcher) addDirLocked(p string) error {
	base := filepath.Base(p)
	if strings.HasPrefix(base, ".") && base != "." && base != ".." {
		return filepath.SkipDir
	}

	count := rw.watchedDirs[p]
	rw.watchedDirs[p] = count + 1

	if count == 0 {
		if err := rw.fsWatcher.Add(p); err != nil {
			delete(rw.watchedDirs, p)
			return err
		}
		rw.logger.Debug("added watch", zap.String("path", p))
	}
	return nil
}

func (rw *recursiveWatcher) removeDirLocked(p string) {
	count, ok := rw.watchedDirs[p]
	if !ok {
		return
	}

	if count <= 1 {
		_ = rw.fsWatcher.Remove(p)
		delete(rw.watchedDirs, p)
		rw.logger.Debug("removed watch", zap.String("path", p))
	} else {
		rw.watchedDirs[p] = count - 1
	}
}

func (rw *recursiveWatcher) loop() {
	defer close(rw.events)
	defer close(rw.errors)

	for {
		select {
		case <-rw.done:
			return
		case event, ok := <-rw.fsWatcher.Events:
			if !ok {
				return
			}
			if rw.shouldIgnore(event.Name) {
				continue
			}

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					rw.mu.Lock()
					_ = rw.addRecursiveLocked(event.Name)
					rw.mu.Unlock()
				}
			}
			if event.Op&fsnotify.Remove == fsnotify.Remove || event.Op&fsnotify.Rename == fsnotify.Rename {
				rw.mu.Lock()
				if _, ok := rw.watchedDirs[event.Name]; ok {
					delete(rw.watchedDirs, event.Name)
					for p := range rw.watchedDirs {
						if strings.HasPrefix(p, event.Name+string(os.PathSeparator)) {
							delete(rw.watchedDirs, p)
						}
					}
				}
				rw.mu.Unlock()
			}

			rw.events <- event

		case err, ok := <-rw.fsWatcher.Errors:
			if !ok {
				return
			}
			rw.errors <- err
		}
	}
}

func (rw *recursiveWatcher) shouldIgnore(p string) bool {
	base := filepath.Base(p)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
