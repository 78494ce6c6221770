package logging

import "fmt"

type Config struct {
	// Capacity bounds the number of events kept, the oldest are dropped first.
	Capacity int `yaml:"capacity" json:"capacity"`
}

func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity('%v')", c.Capacity)
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		Capacity: 1024,
	}
}
