package listener

import (
	"fmt"
	"net"
)

type Config struct {
	Addr string `yaml:"address" json:"address"`
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("address('%v')", c.Addr)
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("address('%v'): %w", c.Addr, err)
	}
	return nil
}

// Port returns the port part of the configured address.
func (c *Config) Port() string {
	_, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return ""
	}
	return port
}
