package service

import (
	"fmt"
	"regexp"
	"time"

	"github.com/plgd-dev/nmos-registry/pkg/config"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/pkg/net/listener"
	"github.com/plgd-dev/nmos-registry/pkg/sync/task/queue"
	"github.com/plgd-dev/nmos-registry/registry/eventbus"
	"github.com/plgd-dev/nmos-registry/registry/expiration"
	"github.com/plgd-dev/nmos-registry/registry/logging"
	"github.com/plgd-dev/nmos-registry/registry/mdns"
	"github.com/plgd-dev/nmos-registry/registry/registration"
	"github.com/plgd-dev/nmos-registry/registry/self"
	"github.com/plgd-dev/nmos-registry/registry/settings"
)

var versionPattern = regexp.MustCompile(`^v[0-9]+\.[0-9]+$`)

// Config represent application configuration
type Config struct {
	Log       log.Config     `yaml:"log" json:"log"`
	APIs      APIsConfig     `yaml:"apis" json:"apis"`
	Registry  RegistryConfig `yaml:"registry" json:"registry"`
	Clients   ClientsConfig  `yaml:"clients" json:"clients"`
	TaskQueue queue.Config   `yaml:"taskQueue" json:"taskQueue"`
}

func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log.%w", err)
	}
	if err := c.APIs.Validate(); err != nil {
		return fmt.Errorf("apis.%w", err)
	}
	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("registry.%w", err)
	}
	if err := c.Clients.Validate(); err != nil {
		return fmt.Errorf("clients.%w", err)
	}
	if err := c.TaskQueue.Validate(); err != nil {
		return fmt.Errorf("taskQueue.%w", err)
	}
	return nil
}

// String return string representation of Config
func (c Config) String() string {
	return config.ToString(c)
}

// Settings returns the values which can be changed at runtime.
func (c *Config) Settings() settings.Values {
	return settings.Values{
		LoggingLevel:          c.Log.Level,
		AllowInvalidResources: c.Registry.AllowInvalidResources,
	}
}

// ParseSettings reads the runtime settings from the content of a config file.
func ParseSettings(data []byte) (settings.Values, error) {
	var cfg Config
	if err := config.Parse(data, &cfg); err != nil {
		return settings.Values{}, err
	}
	return cfg.Settings(), nil
}

type WebSocketConfig struct {
	// QueueSize bounds the grains waiting to be written to one connection.
	QueueSize    int           `yaml:"queueSize" json:"queueSize"`
	PingPeriod   time.Duration `yaml:"pingPeriod" json:"pingPeriod"`
	WriteTimeout time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
}

func (c *WebSocketConfig) Validate() error {
	if c.QueueSize <= 0 {
		return fmt.Errorf("queueSize('%v')", c.QueueSize)
	}
	if c.PingPeriod <= 0 {
		return fmt.Errorf("pingPeriod('%v')", c.PingPeriod)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("writeTimeout('%v')", c.WriteTimeout)
	}
	return nil
}

type QueryConfig struct {
	Connection listener.Config `yaml:",inline" json:",inline"`
	WebSocket  WebSocketConfig `yaml:"webSocket" json:"webSocket"`
}

func (c *QueryConfig) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if err := c.WebSocket.Validate(); err != nil {
		return fmt.Errorf("webSocket.%w", err)
	}
	return nil
}

type AdminConfig struct {
	Enabled    bool            `yaml:"enabled" json:"enabled"`
	Connection listener.Config `yaml:",inline" json:",inline"`
	// Directory with the static files of the admin UI.
	Directory string `yaml:"directory" json:"directory"`
}

func (c *AdminConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if c.Directory == "" {
		return fmt.Errorf("directory('%v')", c.Directory)
	}
	return nil
}

type LoggingConfig struct {
	Connection listener.Config `yaml:",inline" json:",inline"`
	Events     logging.Config  `yaml:"events" json:"events"`
}

func (c *LoggingConfig) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events.%w", err)
	}
	return nil
}

type DNSSDConfig struct {
	Enabled    bool            `yaml:"enabled" json:"enabled"`
	Connection listener.Config `yaml:",inline" json:",inline"`
	// BrowseTimeout bounds the multicast queries of one request.
	BrowseTimeout time.Duration `yaml:"browseTimeout" json:"browseTimeout"`
}

func (c *DNSSDConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if c.BrowseTimeout <= 0 {
		return fmt.Errorf("browseTimeout('%v')", c.BrowseTimeout)
	}
	return nil
}

type APIsConfig struct {
	Logging      LoggingConfig   `yaml:"logging" json:"logging"`
	Settings     listener.Config `yaml:"settings" json:"settings"`
	Node         listener.Config `yaml:"node" json:"node"`
	Query        QueryConfig     `yaml:"query" json:"query"`
	Registration listener.Config `yaml:"registration" json:"registration"`
	Admin        AdminConfig     `yaml:"admin" json:"admin"`
	DNSSD        DNSSDConfig     `yaml:"dnsSd" json:"dnsSd"`
}

func (c *APIsConfig) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging.%w", err)
	}
	if err := c.Settings.Validate(); err != nil {
		return fmt.Errorf("settings.%w", err)
	}
	if err := c.Node.Validate(); err != nil {
		return fmt.Errorf("node.%w", err)
	}
	if err := c.Query.Validate(); err != nil {
		return fmt.Errorf("query.%w", err)
	}
	if err := c.Registration.Validate(); err != nil {
		return fmt.Errorf("registration.%w", err)
	}
	if err := c.Admin.Validate(); err != nil {
		return fmt.Errorf("admin.%w", err)
	}
	if err := c.DNSSD.Validate(); err != nil {
		return fmt.Errorf("dnsSd.%w", err)
	}
	return nil
}

type RegistryConfig struct {
	// Versions of the APIs served, e.g. v1.3.
	Versions              []string            `yaml:"versions" json:"versions"`
	AllowInvalidResources bool                `yaml:"allowInvalidResources" json:"allowInvalidResources"`
	Registration          registration.Config `yaml:"registration" json:"registration"`
	Expiration            expiration.Config   `yaml:"expiration" json:"expiration"`
	Self                  self.Config         `yaml:"self" json:"self"`
}

func (c *RegistryConfig) Validate() error {
	if len(c.Versions) == 0 {
		return fmt.Errorf("versions('%v')", c.Versions)
	}
	for _, v := range c.Versions {
		if !versionPattern.MatchString(v) {
			return fmt.Errorf("versions('%v')", c.Versions)
		}
	}
	if err := c.Registration.Validate(); err != nil {
		return fmt.Errorf("registration.%w", err)
	}
	if err := c.Expiration.Validate(); err != nil {
		return fmt.Errorf("expiration.%w", err)
	}
	if c.Expiration.Interval >= c.Registration.HeartbeatInterval {
		return fmt.Errorf("expiration.interval('%v') must be shorter than registration.heartbeatInterval('%v')", c.Expiration.Interval, c.Registration.HeartbeatInterval)
	}
	if err := c.Self.Validate(); err != nil {
		return fmt.Errorf("self.%w", err)
	}
	return nil
}

type ClientsConfig struct {
	MDNS     mdns.Config     `yaml:"mdns" json:"mdns"`
	EventBus eventbus.Config `yaml:"eventBus" json:"eventBus"`
}

func (c *ClientsConfig) Validate() error {
	if err := c.MDNS.Validate(); err != nil {
		return fmt.Errorf("mdns.%w", err)
	}
	if err := c.EventBus.Validate(); err != nil {
		return fmt.Errorf("eventBus.%w", err)
	}
	return nil
}
