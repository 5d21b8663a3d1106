package tripmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viant/tripmanager/internal/meta"
	"github.com/viant/tripmanager/service/auth/jwt"
	"github.com/viant/tripmanager/service/host"
	"github.com/viant/tripmanager/service/messaging"
	"github.com/viant/tripmanager/service/trigger/queue"
)

// Config is a serialisable representation of the trip manager configuration.
// Zero sections are filled from DefaultConfig before a file is applied.
type Config struct {
	Host     HostConfig    `json:"host" yaml:"host"`
	Queue    QueueConfig   `json:"queue" yaml:"queue"`
	Consumer queue.Config  `json:"consumer" yaml:"consumer"`
	HTTP     HTTPConfig    `json:"http" yaml:"http"`
	Auth     AuthConfig    `json:"auth" yaml:"auth"`
	Index    IndexConfig   `json:"index" yaml:"index"`
	Tracing  TracingConfig `json:"tracing" yaml:"tracing"`
}

// StoreVendor selects the instance store implementation
type StoreVendor string

// Supported instance stores
const (
	StoreMemory StoreVendor = "memory"
	StoreFs     StoreVendor = "fs"
)

// HostConfig configures the orchestration host and its instance store
type HostConfig struct {
	host.Config `yaml:",inline"`
	StoreVendor StoreVendor `json:"storeVendor" yaml:"storeVendor"`
	StoreURL    string           `json:"storeURL,omitempty" yaml:"storeURL,omitempty"`
}

// QueueConfig configures the host run queue and trigger queues
type QueueConfig struct {
	Vendor     messaging.Vendor `json:"vendor" yaml:"vendor"`
	BaseURL    string           `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	MaxRetries int              `json:"maxRetries" yaml:"maxRetries"`
	RetryDelay time.Duration    `json:"retryDelay" yaml:"retryDelay"`
	Buffer     int              `json:"buffer" yaml:"buffer"`
}

// HTTPConfig configures the REST trigger; an empty Addr disables it
type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// AuthConfig configures bearer token validation
type AuthConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	jwt.Config `yaml:",inline"`
}

// IndexConfig configures the active-key index; an empty DSN keeps it in memory
type IndexConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DSN     string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	OutputFile  string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// DefaultConfig returns an in-memory configuration serving HTTP on :8080
func DefaultConfig() *Config {
	return &Config{
		Host: HostConfig{
			Config:      host.DefaultConfig(),
			StoreVendor: StoreMemory,
		},
		Queue: QueueConfig{
			Vendor:     messaging.VendorMemory,
			MaxRetries: 3,
			RetryDelay: time.Second,
			Buffer:     1000,
		},
		Consumer: queue.DefaultConfig(),
		HTTP:     HTTPConfig{Addr: ":8080"},
		Tracing:  TracingConfig{ServiceName: "tripmanager"},
	}
}

// LoadConfig reads a YAML configuration over the defaults and validates it
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	ret := DefaultConfig()
	if err := meta.NewLoader(nil).Load(ctx, URL, ret); err != nil {
		return nil, err
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if err := c.Host.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Host.StoreVendor {
	case StoreMemory:
	case StoreFs:
		if c.Host.StoreURL == "" {
			errs = append(errs, fmt.Errorf("host.storeURL is required for fs store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported host.storeVendor: %q", c.Host.StoreVendor))
	}
	switch c.Queue.Vendor {
	case messaging.VendorMemory:
		if c.Queue.Buffer <= 0 {
			errs = append(errs, fmt.Errorf("queue.buffer must be > 0"))
		}
	case messaging.VendorFs:
		if c.Queue.BaseURL == "" {
			errs = append(errs, fmt.Errorf("queue.baseURL is required for fs queue"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported queue.vendor: %q", c.Queue.Vendor))
	}
	if c.Queue.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("queue.maxRetries must be >= 0"))
	}
	if c.Consumer.BackoffBase <= 0 || c.Consumer.BackoffMax < c.Consumer.BackoffBase {
		errs = append(errs, fmt.Errorf("consumer backoff must satisfy 0 < backoffBase <= backoffMax"))
	}
	if c.Auth.Enabled && c.Auth.RSAKeyURL == "" && c.Auth.HMACKeyURL == "" {
		errs = append(errs, fmt.Errorf("auth requires rsaKeyURL or hmacKeyURL"))
	}
	return errors.Join(errs...)
}
