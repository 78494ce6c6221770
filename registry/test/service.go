package test

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/pkg/net/listener"
	"github.com/plgd-dev/nmos-registry/registry/expiration"
	"github.com/plgd-dev/nmos-registry/registry/logging"
	"github.com/plgd-dev/nmos-registry/registry/mdns"
	"github.com/plgd-dev/nmos-registry/registry/registration"
	"github.com/plgd-dev/nmos-registry/registry/service"
	"github.com/stretchr/testify/require"
)

const localhost = "127.0.0.1:0"

// MakeConfig returns a valid configuration listening on random local ports
// without mDNS advertisement.
func MakeConfig(t require.TestingT) service.Config {
	var cfg service.Config
	cfg.Log = log.Config{Level: log.SeverityInfo}
	cfg.APIs.Logging.Connection = listener.Config{Addr: localhost}
	cfg.APIs.Logging.Events = logging.DefaultConfig()
	cfg.APIs.Settings = listener.Config{Addr: localhost}
	cfg.APIs.Node = listener.Config{Addr: localhost}
	cfg.APIs.Query.Connection = listener.Config{Addr: localhost}
	cfg.APIs.Query.WebSocket = service.WebSocketConfig{
		QueueSize:    16,
		PingPeriod:   time.Second,
		WriteTimeout: time.Second,
	}
	cfg.APIs.Registration = listener.Config{Addr: localhost}
	cfg.Registry.Versions = []string{"v1.2", Version}
	cfg.Registry.Registration = registration.DefaultConfig()
	cfg.Registry.Expiration = expiration.Config{
		Interval:                time.Millisecond * 50,
		SubscriptionIdleTimeout: time.Second * 30,
	}
	cfg.Registry.Self.Seed = "test"
	cfg.Registry.Self.Label = "test registry"
	cfg.Registry.Self.HostName = "registry.test"
	cfg.Registry.Self.HostAddress = "127.0.0.1"
	cfg.Clients.MDNS.Priority = mdns.NoPriority
	cfg.TaskQueue.GoPoolSize = 4
	cfg.TaskQueue.Size = 64

	err := cfg.Validate()
	require.NoError(t, err)
	return cfg
}

// New starts the registry with a mock clock and returns a function stopping it.
func New(t require.TestingT, cfg service.Config) (*service.Service, *clock.Mock, func()) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))
	s, err := service.NewWithClock(cfg, clk, log.Get())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Serve()
	}()

	return s, clk, func() {
		_ = s.Close()
		wg.Wait()
	}
}
