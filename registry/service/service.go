package service

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/plgd-dev/nmos-registry/pkg/fn"
	"github.com/plgd-dev/nmos-registry/pkg/fsnotify"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	kitNetHttp "github.com/plgd-dev/nmos-registry/pkg/net/http"
	"github.com/plgd-dev/nmos-registry/pkg/net/listener"
	"github.com/plgd-dev/nmos-registry/pkg/service"
	"github.com/plgd-dev/nmos-registry/pkg/sync/task/queue"
	"github.com/plgd-dev/nmos-registry/registry/broadcast"
	"github.com/plgd-dev/nmos-registry/registry/eventbus"
	"github.com/plgd-dev/nmos-registry/registry/expiration"
	"github.com/plgd-dev/nmos-registry/registry/logging"
	"github.com/plgd-dev/nmos-registry/registry/mdns"
	"github.com/plgd-dev/nmos-registry/registry/metrics"
	"github.com/plgd-dev/nmos-registry/registry/registration"
	"github.com/plgd-dev/nmos-registry/registry/self"
	"github.com/plgd-dev/nmos-registry/registry/settings"
	"github.com/plgd-dev/nmos-registry/registry/store"
	"github.com/plgd-dev/nmos-registry/registry/subscription"
	"go.uber.org/zap/zapcore"
)

const serviceName = "nmos-registry"

const readHeaderTimeout = time.Second * 10

// httpService serves one API on its own listener.
type httpService struct {
	server   *http.Server
	listener *listener.Server
}

func newHTTPService(l *listener.Server, handler http.Handler, apiName string) *httpService {
	return &httpService{
		server: &http.Server{
			Handler:           kitNetHttp.OpenTelemetryNewHandler(handler, serviceName+"-"+apiName),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		listener: l,
	}
}

// Serve starts the HTTP server and blocks
func (s *httpService) Serve() error {
	return s.server.Serve(s.listener)
}

// Close ends serving
func (s *httpService) Close() error {
	return s.server.Shutdown(context.Background())
}

// Service runs the APIs and the workers of the registry.
type Service struct {
	*service.Service
	settings *settings.Settings
	engine   *registration.Engine
	self     self.Resources
	addrs    map[string]string
	logger   log.Logger
}

// Addr returns the address the API (logging, settings, node, query, registration, admin or dnsSd) listens on.
func (s *Service) Addr(api string) string {
	return s.addrs[api]
}

func (s *Service) Settings() *settings.Settings {
	return s.settings
}

func (s *Service) Engine() *registration.Engine {
	return s.engine
}

func (s *Service) Self() self.Resources {
	return s.self
}

// WatchConfig applies the runtime settings of the config file whenever it changes.
func (s *Service) WatchConfig(path string, fileWatcher *fsnotify.Watcher) error {
	reloader, err := settings.NewReloader(path, s.settings, ParseSettings, fileWatcher, s.logger)
	if err != nil {
		return fmt.Errorf("cannot watch config file %v: %w", path, err)
	}
	s.AddCloseFunc(reloader.Close)
	return nil
}

type listeners struct {
	logging      *listener.Server
	settings     *listener.Server
	node         *listener.Server
	query        *listener.Server
	registration *listener.Server
	admin        *listener.Server
	dnsSd        *listener.Server
}

// newListeners opens the listeners in dependency order.
func newListeners(config APIsConfig, logger log.Logger) (listeners, error) {
	var ls listeners
	var closeFn fn.FuncList
	open := func(name string, cfg listener.Config) (*listener.Server, error) {
		l, err := listener.New(cfg, logger)
		if err != nil {
			closeFn.Execute()
			return nil, fmt.Errorf("cannot create %v listener: %w", name, err)
		}
		closeFn.AddFunc(func() {
			if errC := l.Close(); errC != nil {
				logger.Errorf("cannot close %v listener: %v", name, errC)
			}
		})
		return l, nil
	}
	var err error
	if ls.logging, err = open("logging", config.Logging.Connection); err != nil {
		return listeners{}, err
	}
	if ls.settings, err = open("settings", config.Settings); err != nil {
		return listeners{}, err
	}
	if ls.node, err = open("node", config.Node); err != nil {
		return listeners{}, err
	}
	if ls.query, err = open("query", config.Query.Connection); err != nil {
		return listeners{}, err
	}
	if ls.registration, err = open("registration", config.Registration); err != nil {
		return listeners{}, err
	}
	if config.Admin.Enabled {
		if ls.admin, err = open("admin", config.Admin.Connection); err != nil {
			return listeners{}, err
		}
	}
	if config.DNSSD.Enabled {
		if ls.dnsSd, err = open("dnsSd", config.DNSSD.Connection); err != nil {
			return listeners{}, err
		}
	}
	return ls, nil
}

func (ls listeners) close(logger log.Logger) {
	for _, l := range []*listener.Server{ls.dnsSd, ls.admin, ls.registration, ls.query, ls.node, ls.settings, ls.logging} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			logger.Errorf("cannot close listener: %v", err)
		}
	}
}

func port(l *listener.Server) int {
	if addr, ok := l.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

func mdnsServices(ls listeners, versions []string) []mdns.Service {
	return []mdns.Service{
		{Type: mdns.NodeService, Port: port(ls.node), Versions: versions},
		{Type: mdns.QueryService, Port: port(ls.query), Versions: versions},
		{Type: mdns.RegistrationService, Port: port(ls.registration), Versions: versions},
		{Type: mdns.RegisterService, Port: port(ls.registration), Versions: versions},
	}
}

// New creates the registry: the store with its observers, the workers and one
// HTTP server per API. Workers are closed after the HTTP servers.
func New(config Config, logger log.Logger) (*Service, error) {
	return NewWithClock(config, clock.New(), logger)
}

// recordEvents tees the logger into the buffer of the logging API. The buffer
// follows the runtime level when the logger is the one of pkg/log.
func recordEvents(config logging.Config, logger log.Logger) (*logging.Buffer, log.Logger) {
	wl, ok := logger.(*log.WrapSuggarLogger)
	if !ok {
		return logging.NewBuffer(config, zapcore.DebugLevel), logger
	}
	events := logging.NewBuffer(config, wl.LevelEnabler())
	return events, wl.Tee(events.Core())
}

// NewWithClock is New with an injected clock for the health deadlines.
func NewWithClock(config Config, clk clock.Clock, logger log.Logger) (*Service, error) {
	events, logger := recordEvents(config.APIs.Logging.Events, logger)
	ls, err := newListeners(config.APIs, logger)
	if err != nil {
		return nil, err
	}
	var closeOnError fn.FuncList
	closeOnError.AddFunc(func() { ls.close(logger) })

	severityLogger, _ := logger.(settings.SeverityLogger)
	runtimeSettings, err := settings.New(config.Settings(), severityLogger)
	if err != nil {
		closeOnError.Execute()
		return nil, fmt.Errorf("cannot create settings: %w", err)
	}

	s := store.New()
	s.AddObserver(metrics.StoreObserver{})
	engine := registration.New(s, config.Registry.Registration, clk, runtimeSettings, logger.With("component", "registration"))

	selfConfig := config.Registry.Self
	selfConfig.NodePort = port(ls.node)
	selfConfig.Versions = config.Registry.Versions
	selfResources, err := self.Register(s, selfConfig, clk.Now())
	if err != nil {
		closeOnError.Execute()
		return nil, err
	}

	subscriptions := subscription.New(s, selfResources.NodeID, clk, logger.With("component", "subscription"), subscription.WithExpired(engine.Expired))

	q, err := queue.New(config.TaskQueue)
	if err != nil {
		closeOnError.Execute()
		return nil, fmt.Errorf("cannot create task queue: %w", err)
	}
	closeOnError.AddFunc(q.Release)
	broadcaster := broadcast.New(s, subscriptions, q, logger.With("component", "broadcast"))

	sweeper, err := expiration.New(config.Registry.Expiration, engine, subscriptions, clk, logger.With("component", "expiration"))
	if err != nil {
		closeOnError.Execute()
		return nil, fmt.Errorf("cannot create expiration sweeper: %w", err)
	}
	closeOnError.AddFunc(func() {
		if errC := sweeper.Close(); errC != nil {
			logger.Errorf("cannot close expiration sweeper: %v", errC)
		}
	})

	advertiser, err := mdns.New(config.Clients.MDNS, selfConfig.Label, selfConfig.HostName,
		[]net.IP{net.ParseIP(selfConfig.HostAddress)}, mdnsServices(ls, config.Registry.Versions), logger.With("component", "mdns"))
	if err != nil {
		closeOnError.Execute()
		return nil, fmt.Errorf("cannot create mDNS advertiser: %w", err)
	}
	closeOnError.AddFunc(func() {
		if errC := advertiser.Close(); errC != nil {
			logger.Errorf("cannot close mDNS advertiser: %v", errC)
		}
	})

	workers := []service.APIService{broadcaster, sweeper, advertiser}
	if config.Clients.EventBus.Enabled {
		mirror, errM := eventbus.New(config.Clients.EventBus, subscriptions, logger.With("component", "eventbus"))
		if errM != nil {
			closeOnError.Execute()
			return nil, fmt.Errorf("cannot create event bus mirror: %w", errM)
		}
		workers = append(workers, mirror)
	}

	queryHost := net.JoinHostPort(selfConfig.HostAddress, strconv.Itoa(port(ls.query)))
	rh := NewRequestHandler(config.Registry.Versions, config.APIs.Query.WebSocket, engine, subscriptions, runtimeSettings, selfResources, queryHost, logger)

	apis := []service.APIService{
		newHTTPService(ls.logging, NewLoggingHTTP(events, logger), "logging"),
		newHTTPService(ls.settings, NewSettingsHTTP(rh), "settings"),
		newHTTPService(ls.node, NewNodeHTTP(rh), "node"),
		newHTTPService(ls.query, NewQueryHTTP(rh), "query"),
		newHTTPService(ls.registration, NewRegistrationHTTP(rh), "registration"),
	}
	addrs := map[string]string{
		"logging":      ls.logging.Addr().String(),
		"settings":     ls.settings.Addr().String(),
		"node":         ls.node.Addr().String(),
		"query":        ls.query.Addr().String(),
		"registration": ls.registration.Addr().String(),
	}
	if ls.admin != nil {
		apis = append(apis, newHTTPService(ls.admin, NewAdminHTTP(config.APIs.Admin.Directory, logger), "admin"))
		addrs["admin"] = ls.admin.Addr().String()
	}
	if ls.dnsSd != nil {
		browser := mdns.NewBrowser(config.Clients.MDNS, config.APIs.DNSSD.BrowseTimeout)
		apis = append(apis, newHTTPService(ls.dnsSd, NewDNSSDHTTP(browser, BrowsedServiceTypes, logger), "dnsSd"))
		addrs["dnsSd"] = ls.dnsSd.Addr().String()
	}

	svc := service.New(workers...)
	svc.Add(apis...)
	svc.AddCloseFunc(q.Release)
	logger.Infof("registry node('%v') serves %v", selfResources.NodeID, addrs)
	return &Service{
		Service:  svc,
		settings: runtimeSettings,
		engine:   engine,
		self:     selfResources,
		addrs:    addrs,
		logger:   logger,
	}, nil
}
