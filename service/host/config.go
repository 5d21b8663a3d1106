package host

import (
	"fmt"
	"time"
)

// Config represents host configuration
type Config struct {
	// Workers is the number of goroutines consuming scheduled runs
	Workers int `json:"workers" yaml:"workers"`

	// Mailbox is the buffer size of each running instance's event channel
	Mailbox int `json:"mailbox" yaml:"mailbox"`

	// PollInterval is the idle wait for queues that do not block on Consume
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
}

// DefaultConfig returns the default host configuration
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		Mailbox:      16,
		PollInterval: 50 * time.Millisecond,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("host workers must be positive: %d", c.Workers)
	}
	if c.Mailbox < 0 {
		return fmt.Errorf("host mailbox must not be negative: %d", c.Mailbox)
	}
	return nil
}
