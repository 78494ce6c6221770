package fsnotify

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"go.uber.org/atomic"
)

// Watcher fans out file system events to registered handlers. A path can be
// added multiple times; it stops being watched after the matching number of removals.
type Watcher struct {
	private struct {
		mutex           sync.RWMutex
		paths           map[string]uint32
		w               *fsnotify.Watcher
		onEventHandlers []*func(event Event)
	}
	logger   log.Logger
	done     chan struct{}
	closed   atomic.Bool
	finished sync.WaitGroup
}

type (
	Event = fsnotify.Event
	Op    = fsnotify.Op
)

const (
	Create = fsnotify.Create
	Remove = fsnotify.Remove
	Rename = fsnotify.Rename
	Chmod  = fsnotify.Chmod
	Write  = fsnotify.Write
)

func NewWatcher(logger log.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	watcher := Watcher{
		logger: logger,
		done:   make(chan struct{}),
	}
	watcher.private.w = w
	watcher.private.paths = make(map[string]uint32)
	watcher.finished.Add(1)
	go watcher.run()
	return &watcher, nil
}

func (w *Watcher) Add(name string) error {
	name = filepath.Clean(name)
	w.private.mutex.Lock()
	defer w.private.mutex.Unlock()
	if _, ok := w.private.paths[name]; ok {
		w.private.paths[name]++
		return nil
	}
	if err := w.private.w.Add(name); err != nil {
		return err
	}
	w.private.paths[name] = 1
	return nil
}

func (w *Watcher) Remove(name string) error {
	name = filepath.Clean(name)
	w.private.mutex.Lock()
	defer w.private.mutex.Unlock()
	if _, ok := w.private.paths[name]; !ok {
		return fmt.Errorf("%v is not watched", name)
	}
	w.private.paths[name]--
	if w.private.paths[name] > 0 {
		return nil
	}
	delete(w.private.paths, name)
	return w.private.w.Remove(name)
}

func (w *Watcher) AddOnEventHandler(onEventHandler *func(event Event)) {
	if onEventHandler == nil {
		return
	}
	w.private.mutex.Lock()
	defer w.private.mutex.Unlock()
	for _, handler := range w.private.onEventHandlers {
		if handler == onEventHandler {
			return
		}
	}
	w.private.onEventHandlers = append(w.private.onEventHandlers, onEventHandler)
}

func (w *Watcher) RemoveOnEventHandler(onEventHandler *func(event Event)) {
	if onEventHandler == nil {
		return
	}
	w.private.mutex.Lock()
	defer w.private.mutex.Unlock()
	for i, handler := range w.private.onEventHandlers {
		if handler == onEventHandler {
			w.private.onEventHandlers = append(w.private.onEventHandlers[:i], w.private.onEventHandlers[i+1:]...)
			return
		}
	}
}

func (w *Watcher) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := w.private.w.Close()
	close(w.done)
	defer w.finished.Wait()
	w.private.mutex.Lock()
	defer w.private.mutex.Unlock()
	w.private.paths = make(map[string]uint32)
	return err
}

func (w *Watcher) handlers() []*func(event Event) {
	w.private.mutex.RLock()
	defer w.private.mutex.RUnlock()
	handlers := make([]*func(event Event), len(w.private.onEventHandlers))
	copy(handlers, w.private.onEventHandlers)
	return handlers
}

func (w *Watcher) run() {
	defer w.finished.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.private.w.Events:
			if !ok {
				return
			}
			for _, handler := range w.handlers() {
				(*handler)(event)
			}
		case err, ok := <-w.private.w.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Errorf("fsnotify error: %v", err)
			}
		}
	}
}
