package pool

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/ConnRi/internal/errs"
)

// Defaults applied to any Config field left at its zero value.
const (
	DefaultPoolSize           = 20
	DefaultMinConns           = 2
	DefaultIdleTimeout        = 30 * time.Second
	DefaultConnectionTimeout  = 2 * time.Second
	DefaultMaxRetries         = 5
	DefaultRetryDelay         = 5 * time.Second
	DefaultQueryTimeout       = 30 * time.Second
	DefaultSlowQueryThreshold = 200 * time.Millisecond
)

// Config holds all settings needed to connect to and pool a database.
// It is copied by NewManager and by the drivers — mutating it after
// construction has no effect on a running component.
type Config struct {
	// Connection target
	Host     string
	Port     int // 0 means the engine default (5432 / 3306)
	Database string
	User     string
	Password string
	SSL      bool // when true, drivers require TLS on the connection

	// Pool tuning
	PoolSize    int32         // maximum number of concurrently leased handles
	MinConns    int32         // minimum number of idle connections kept alive
	IdleTimeout time.Duration // how long an idle connection may sit before reclaim

	// Timeouts
	ConnectionTimeout time.Duration // upper bound on waiting for a free handle
	QueryTimeout      time.Duration // default statement deadline when the caller's context has none

	// Initialization retry policy. The delay is fixed, not exponential —
	// a deliberate simplicity choice. MaxRetries < 0 disables retries.
	MaxRetries int
	RetryDelay time.Duration

	// Diagnostics
	SlowQueryThreshold time.Duration // statements slower than this are logged, not failed
}

// DefaultConfig returns a Config with every tunable at its documented default.
// Host, Database, and credentials must still be filled in by the caller.
func DefaultConfig() *Config {
	return &Config{
		PoolSize:           DefaultPoolSize,
		MinConns:           DefaultMinConns,
		IdleTimeout:        DefaultIdleTimeout,
		ConnectionTimeout:  DefaultConnectionTimeout,
		MaxRetries:         DefaultMaxRetries,
		RetryDelay:         DefaultRetryDelay,
		QueryTimeout:       DefaultQueryTimeout,
		SlowQueryThreshold: DefaultSlowQueryThreshold,
	}
}

// Normalized returns a copy of c with defaults applied to zero-valued fields.
func (c *Config) Normalized() *Config {
	out := *c
	if out.PoolSize == 0 {
		out.PoolSize = DefaultPoolSize
	}
	if out.MinConns == 0 {
		out.MinConns = DefaultMinConns
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = DefaultIdleTimeout
	}
	if out.ConnectionTimeout == 0 {
		out.ConnectionTimeout = DefaultConnectionTimeout
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = DefaultMaxRetries
	}
	if out.RetryDelay == 0 {
		out.RetryDelay = DefaultRetryDelay
	}
	if out.QueryTimeout == 0 {
		out.QueryTimeout = DefaultQueryTimeout
	}
	if out.SlowQueryThreshold == 0 {
		out.SlowQueryThreshold = DefaultSlowQueryThreshold
	}
	return &out
}

// Validate checks the fields a driver cannot supply a default for.
// It is called once, at Init.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errs.New(errs.ErrKindConfig, "host is required")
	}
	if c.Database == "" {
		return errs.New(errs.ErrKindConfig, "database name is required")
	}
	if c.User == "" {
		return errs.New(errs.ErrKindConfig, "user is required")
	}
	if c.PoolSize < 0 {
		return errs.New(errs.ErrKindConfig, fmt.Sprintf("pool size must be positive, got %d", c.PoolSize))
	}
	if c.MinConns > c.PoolSize && c.PoolSize > 0 {
		return errs.New(errs.ErrKindConfig,
			fmt.Sprintf("min connections (%d) exceeds pool size (%d)", c.MinConns, c.PoolSize))
	}
	if c.RetryDelay < 0 {
		return errs.New(errs.ErrKindConfig, "retry delay must not be negative")
	}
	return nil
}

// fileConfig is the YAML shape of a Config. Durations are expressed in
// milliseconds, matching how the configuration collaborator documents them.
type fileConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSL      bool   `yaml:"ssl"`

	PoolSize             int32 `yaml:"pool_size"`
	MinConns             int32 `yaml:"min_conns"`
	IdleTimeoutMs        int   `yaml:"idle_timeout_ms"`
	ConnectionTimeoutMs  int   `yaml:"connection_timeout_ms"`
	QueryTimeoutMs       int   `yaml:"query_timeout_ms"`
	MaxRetries           int   `yaml:"max_retries"`
	RetryDelayMs         int   `yaml:"retry_delay_ms"`
	SlowQueryThresholdMs int   `yaml:"slow_query_threshold_ms"`
}

// LoadConfig reads a pool configuration from a YAML file.
// Absent fields fall back to the documented defaults at Init time.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfig, fmt.Sprintf("cannot read config file %s", path), err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, errs.Wrap(errs.ErrKindConfig, fmt.Sprintf("cannot parse config file %s", path), err)
	}

	return &Config{
		Host:               fc.Host,
		Port:               fc.Port,
		Database:           fc.Database,
		User:               fc.User,
		Password:           fc.Password,
		SSL:                fc.SSL,
		PoolSize:           fc.PoolSize,
		MinConns:           fc.MinConns,
		IdleTimeout:        time.Duration(fc.IdleTimeoutMs) * time.Millisecond,
		ConnectionTimeout:  time.Duration(fc.ConnectionTimeoutMs) * time.Millisecond,
		QueryTimeout:       time.Duration(fc.QueryTimeoutMs) * time.Millisecond,
		MaxRetries:         fc.MaxRetries,
		RetryDelay:         time.Duration(fc.RetryDelayMs) * time.Millisecond,
		SlowQueryThreshold: time.Duration(fc.SlowQueryThresholdMs) * time.Millisecond,
	}, nil
}
