package eventbus

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	URL            string        `yaml:"url" json:"url"`
	SubjectPrefix  string        `yaml:"subjectPrefix" json:"subjectPrefix"`
	FlusherTimeout time.Duration `yaml:"flusherTimeout" json:"flusherTimeout"`
	// QueueSize bounds the grains waiting to be published per resource type.
	QueueSize int `yaml:"queueSize" json:"queueSize"`
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.URL == "" {
		return fmt.Errorf("url('%v')", c.URL)
	}
	if c.SubjectPrefix == "" {
		return fmt.Errorf("subjectPrefix('%v')", c.SubjectPrefix)
	}
	if c.FlusherTimeout <= 0 {
		return fmt.Errorf("flusherTimeout('%v')", c.FlusherTimeout)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queueSize('%v')", c.QueueSize)
	}
	return nil
}
