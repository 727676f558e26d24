package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/dyluth/canopy/pkg/okr"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is where commands look for the config when no path is given.
	DefaultPath = "canopy.yml"

	// EnvConfigPath overrides DefaultPath.
	EnvConfigPath = "CANOPY_CONFIG"

	DefaultTimeout        = 10 * time.Second
	DefaultMaxConcurrency = 8
	DefaultNamespace      = "default"
	DefaultSyncInterval   = 30 * time.Second
	DefaultListenAddr     = ":8080"
)

// CanopyConfig represents the top-level canopy.yml configuration
type CanopyConfig struct {
	Version  string         `yaml:"version"`
	API      APIConfig      `yaml:"api"`
	Identity IdentityConfig `yaml:"identity"`
	Load     *LoadConfig    `yaml:"load,omitempty"`
	Mirror   *MirrorConfig  `yaml:"mirror,omitempty"`
	Sync     *SyncConfig    `yaml:"sync,omitempty"`
}

// APIConfig locates the backend. The bearer token itself never lives in the
// file; TokenEnv names the environment variable that holds it.
type APIConfig struct {
	BaseURL  string `yaml:"base_url"`
	TokenEnv string `yaml:"token_env,omitempty"`
	Timeout  string `yaml:"timeout,omitempty"` // Go duration, default 10s

	timeout time.Duration
}

// IdentityConfig is the acting user sent as owner_id / assignee_id on create
type IdentityConfig struct {
	UserID string `yaml:"user_id"`
}

// LoadConfig tunes tree loads
type LoadConfig struct {
	MaxConcurrency *int `yaml:"max_concurrency,omitempty"` // per level, 0 = unbounded, default 8
	Strict         bool `yaml:"strict,omitempty"`          // every fetch failure aborts the load
}

// MirrorConfig points at the Redis mirror. An empty RedisURL disables it.
type MirrorConfig struct {
	RedisURL  string `yaml:"redis_url,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// SyncConfig drives the refresher daemon
type SyncConfig struct {
	Interval string    `yaml:"interval,omitempty"` // Go duration, default 30s
	Roots    []RootRef `yaml:"roots,omitempty"`
	Listen   string    `yaml:"listen,omitempty"` // health and metrics address, default :8080

	interval time.Duration
}

// RootRef names a tree to keep refreshed
type RootRef struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`
}

// Validate performs strict validation on the configuration and applies defaults
func (c *CanopyConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if err := c.API.validate(); err != nil {
		return err
	}

	if c.Identity.UserID == "" {
		return fmt.Errorf("identity.user_id is required")
	}

	if c.Load == nil {
		c.Load = &LoadConfig{}
	}
	if c.Load.MaxConcurrency == nil {
		defaultConcurrency := DefaultMaxConcurrency
		c.Load.MaxConcurrency = &defaultConcurrency
	}
	if *c.Load.MaxConcurrency < 0 {
		return fmt.Errorf("load.max_concurrency must be >= 0 (0 = unbounded), got %d", *c.Load.MaxConcurrency)
	}

	if c.Mirror == nil {
		c.Mirror = &MirrorConfig{}
	}
	if c.Mirror.Namespace == "" {
		c.Mirror.Namespace = DefaultNamespace
	}
	if c.Mirror.RedisURL != "" {
		u, err := url.Parse(c.Mirror.RedisURL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return fmt.Errorf("mirror.redis_url must be a redis:// or rediss:// URL, got %q", c.Mirror.RedisURL)
		}
	}

	if c.Sync == nil {
		c.Sync = &SyncConfig{}
	}
	return c.Sync.validate()
}

func (a *APIConfig) validate() error {
	if a.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(a.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", a.BaseURL)
	}

	a.timeout = DefaultTimeout
	if a.Timeout != "" {
		d, err := time.ParseDuration(a.Timeout)
		if err != nil {
			return fmt.Errorf("api.timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("api.timeout must be positive, got %s", a.Timeout)
		}
		a.timeout = d
	}
	return nil
}

func (s *SyncConfig) validate() error {
	if s.Listen == "" {
		s.Listen = DefaultListenAddr
	}

	s.interval = DefaultSyncInterval
	if s.Interval != "" {
		d, err := time.ParseDuration(s.Interval)
		if err != nil {
			return fmt.Errorf("sync.interval: %w", err)
		}
		if d < time.Second {
			return fmt.Errorf("sync.interval must be at least 1s, got %s", s.Interval)
		}
		s.interval = d
	}

	seen := make(map[string]bool)
	for i := range s.Roots {
		root := &s.Roots[i]
		if root.ID == "" {
			return fmt.Errorf("sync.roots[%d]: id is required", i)
		}
		kind, err := okr.ParseRootKind(root.Kind)
		if err != nil {
			return fmt.Errorf("sync.roots[%d]: %w", i, err)
		}
		root.Kind = string(kind)
		if seen[root.ID] {
			return fmt.Errorf("sync.roots: duplicate root id '%s'", root.ID)
		}
		seen[root.ID] = true
	}
	return nil
}

// TimeoutDuration returns the parsed request timeout. Valid after Validate.
func (a APIConfig) TimeoutDuration() time.Duration {
	if a.timeout == 0 {
		return DefaultTimeout
	}
	return a.timeout
}

// Token reads the bearer token from the environment. Empty when TokenEnv is unset.
func (a APIConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// IntervalDuration returns the parsed refresh interval. Valid after Validate.
func (s SyncConfig) IntervalDuration() time.Duration {
	if s.interval == 0 {
		return DefaultSyncInterval
	}
	return s.interval
}

// RootKind returns the normalised kind. Valid after Validate.
func (r RootRef) RootKind() okr.RootKind {
	return okr.RootKind(r.Kind)
}

// UserID returns the acting user as an okr.ID.
func (c *CanopyConfig) UserID() okr.ID {
	return okr.ID(c.Identity.UserID)
}

// ResolvePath picks the config path: an explicit path wins, then
// $CANOPY_CONFIG, then DefaultPath.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads and validates canopy.yml from the specified path
func Load(path string) (*CanopyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a config document
func Parse(data []byte) (*CanopyConfig, error) {
	var config CanopyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
