package mdns

import (
	"fmt"
	"math"
)

// NoPriority disables the advertisement.
const NoPriority = math.MaxInt32

type Config struct {
	// Priority is published in the "pri" TXT record, lower values are preferred.
	Priority  int    `yaml:"priority" json:"priority"`
	Domain    string `yaml:"domain" json:"domain"`
	Interface string `yaml:"interface" json:"interface"`
}

func (c *Config) Validate() error {
	if c.Priority < 0 {
		return fmt.Errorf("priority('%v')", c.Priority)
	}
	return nil
}

func (c *Config) Enabled() bool {
	return c.Priority != NoPriority
}
