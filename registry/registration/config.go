package registration

import (
	"fmt"
	"time"
)

type Config struct {
	// HealthTTL is added to the time of a registration or heartbeat to get the health deadline.
	HealthTTL time.Duration `yaml:"healthTTL" json:"healthTTL" description:"time after the last heartbeat when a resource becomes stale"`
	// HeartbeatInterval is the grace period allowed after the health deadline.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval" json:"heartbeatInterval" description:"expected interval between heartbeats, tolerated as a grace period"`
}

func (c *Config) Validate() error {
	if c.HealthTTL <= 0 {
		return fmt.Errorf("healthTTL('%v')", c.HealthTTL)
	}
	if c.HeartbeatInterval < 0 {
		return fmt.Errorf("heartbeatInterval('%v')", c.HeartbeatInterval)
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		HealthTTL:         time.Second * 12,
		HeartbeatInterval: time.Second * 5,
	}
}
