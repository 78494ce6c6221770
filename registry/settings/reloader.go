package settings

import (
	"os"
	"path/filepath"

	"github.com/plgd-dev/nmos-registry/pkg/fsnotify"
	"github.com/plgd-dev/nmos-registry/pkg/log"
)

// ParseFunc extracts the runtime settings from the content of a config file.
type ParseFunc func(data []byte) (Values, error)

// Reloader applies the settings of the config file whenever the file is written.
type Reloader struct {
	path     string
	settings *Settings
	parse    ParseFunc
	watcher  *fsnotify.Watcher
	logger   log.Logger
	onEvent  func(event fsnotify.Event)
}

func NewReloader(path string, settings *Settings, parse ParseFunc, watcher *fsnotify.Watcher, logger log.Logger) (*Reloader, error) {
	r := &Reloader{
		path:     filepath.Clean(path),
		settings: settings,
		parse:    parse,
		watcher:  watcher,
		logger:   logger,
	}
	r.onEvent = r.handle
	if err := watcher.Add(r.path); err != nil {
		return nil, err
	}
	watcher.AddOnEventHandler(&r.onEvent)
	return r, nil
}

func (r *Reloader) handle(event fsnotify.Event) {
	if filepath.Clean(event.Name) != r.path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	if err := r.Reload(); err != nil {
		r.logger.Errorf("cannot reload settings from %v: %v", r.path, err)
	}
}

// Reload reads the file and applies its settings.
func (r *Reloader) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return err
	}
	v, err := r.parse(data)
	if err != nil {
		return err
	}
	if err := r.settings.Set(v); err != nil {
		return err
	}
	r.logger.Infof("settings reloaded: %v=%v, %v=%v", LoggingLevelKey, v.LoggingLevel, AllowInvalidResourcesKey, v.AllowInvalidResources)
	return nil
}

func (r *Reloader) Close() {
	r.watcher.RemoveOnEventHandler(&r.onEvent)
	if err := r.watcher.Remove(r.path); err != nil {
		r.logger.Debugf("cannot stop watching %v: %v", r.path, err)
	}
}
