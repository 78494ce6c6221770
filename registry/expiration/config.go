package expiration

import (
	"fmt"
	"time"
)

type Config struct {
	// Interval of the sweep, it should be shorter than the heartbeat grace period.
	Interval                time.Duration `yaml:"interval" json:"interval"`
	SubscriptionIdleTimeout time.Duration `yaml:"subscriptionIdleTimeout" json:"subscriptionIdleTimeout"`
}

func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval('%v')", c.Interval)
	}
	if c.SubscriptionIdleTimeout <= 0 {
		return fmt.Errorf("subscriptionIdleTimeout('%v')", c.SubscriptionIdleTimeout)
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		Interval:                time.Second,
		SubscriptionIdleTimeout: time.Second * 30,
	}
}
