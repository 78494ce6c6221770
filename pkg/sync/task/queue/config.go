package queue

import (
	"fmt"
	"time"
)

// Config of the task queue.
type Config struct {
	// GoPoolSize is the maximum number of goroutines draining the queue.
	GoPoolSize int `yaml:"goPoolSize" json:"goPoolSize"`
	// Size of the queue. Submit fails when it is exhausted.
	Size int `yaml:"size" json:"size"`
	// MaxIdleTime is the interval of cleaning up idle goroutines, 0 means never.
	MaxIdleTime time.Duration `yaml:"maxIdleTime" json:"maxIdleTime"`
}

func (c *Config) Validate() error {
	if c.GoPoolSize <= 0 {
		return fmt.Errorf("goPoolSize('%v')", c.GoPoolSize)
	}
	if c.Size <= 0 {
		return fmt.Errorf("size('%v')", c.Size)
	}
	if c.MaxIdleTime < 0 {
		return fmt.Errorf("maxIdleTime('%v')", c.MaxIdleTime)
	}
	return nil
}
