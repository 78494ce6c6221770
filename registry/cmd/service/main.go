package main

import (
	"github.com/plgd-dev/nmos-registry/pkg/config"
	"github.com/plgd-dev/nmos-registry/pkg/fsnotify"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/service"
)

func main() {
	var cfg service.Config
	path, err := config.LoadAndValidateConfig(&cfg)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	logger, err := log.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("cannot create logger: %v", err)
	}
	log.Set(logger)
	log.Infof("config: %v", cfg.String())

	fileWatcher, err := fsnotify.NewWatcher(logger)
	if err != nil {
		log.Fatalf("cannot create file watcher: %v", err)
	}
	defer func() {
		if errC := fileWatcher.Close(); errC != nil {
			log.Errorf("cannot close file watcher: %v", errC)
		}
	}()

	s, err := service.New(cfg, logger)
	if err != nil {
		log.Fatalf("cannot create service: %v", err)
	}
	if err = s.WatchConfig(path, fileWatcher); err != nil {
		log.Warnf("runtime settings will not follow the config file: %v", err)
	}
	if err = s.Serve(); err != nil {
		log.Errorf("cannot serve service: %v", err)
	}
}
