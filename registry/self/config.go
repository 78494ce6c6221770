package self

import (
	"fmt"
	"net"
)

type Config struct {
	// Seed makes the ids of the self resources stable across restarts.
	Seed        string   `yaml:"seed" json:"seed"`
	Label       string   `yaml:"label" json:"label"`
	Description string   `yaml:"description" json:"description"`
	HostName    string   `yaml:"hostName" json:"hostName"`
	HostAddress string   `yaml:"hostAddress" json:"hostAddress"`
	NodePort    int      `yaml:"-" json:"-"`
	Versions    []string `yaml:"-" json:"-"`
}

func (c *Config) Validate() error {
	if c.Seed == "" {
		return fmt.Errorf("seed('%v')", c.Seed)
	}
	if c.HostName == "" {
		return fmt.Errorf("hostName('%v')", c.HostName)
	}
	if net.ParseIP(c.HostAddress) == nil {
		return fmt.Errorf("hostAddress('%v')", c.HostAddress)
	}
	return nil
}
