package app

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/corey/erpkb/internal/domain/match"
	"github.com/corey/erpkb/internal/ports"
)

// Store kinds a backend can be served from.
const (
	StoreFS       = "fs"
	StoreBolt     = "bolt"
	StoreEmbedded = "embedded"
)

// Duration wraps time.Duration so YAML configs can say "10m" or "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// StoreConfig selects and locates one backend's knowledge store.
type StoreConfig struct {
	Kind string `yaml:"kind" validate:"required,oneof=fs bolt embedded"`
	// Path is the knowledge root for fs stores and the database file for
	// bolt stores. Unused by the embedded demo store.
	Path string `yaml:"path" validate:"required_unless=Kind embedded"`
}

// BackendConfig declares one ERP backend: its identity, capabilities and
// knowledge store.
type BackendConfig struct {
	Key          string      `yaml:"key" validate:"required"`
	Aliases      []string    `yaml:"aliases"`
	Capabilities []string    `yaml:"capabilities" validate:"required,min=1,dive,oneof=knowledge flow validation diagnostics recommendation"`
	Version      string      `yaml:"version"`
	Description  string      `yaml:"description"`
	Store        StoreConfig `yaml:"store" validate:"required"`
	// Watch enables cache invalidation on file changes. Only meaningful
	// for fs stores.
	Watch bool `yaml:"watch"`
}

// CacheConfig tunes the per-catalog entry caches.
type CacheConfig struct {
	TTL        Duration `yaml:"ttl"`
	MaxEntries int      `yaml:"max_entries" validate:"min=0"`
}

// Config is the daemon configuration, loaded from YAML.
type Config struct {
	// Socket is the Unix socket path. Empty derives a path from the first
	// backend's store location.
	Socket string `yaml:"socket"`
	// MetricsAddr exposes Prometheus metrics over HTTP when set,
	// e.g. "127.0.0.1:9477".
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`

	Cache      CacheConfig      `yaml:"cache"`
	Thresholds match.Thresholds `yaml:"thresholds"`
	Backends   []BackendConfig  `yaml:"backends" validate:"required,min=1,dive"`
}

// Descriptor converts the backend config to its registry descriptor.
func (b BackendConfig) Descriptor() (ports.BackendDescriptor, error) {
	var caps ports.Capability
	for _, name := range b.Capabilities {
		c, ok := ports.ParseCapability(name)
		if !ok {
			return ports.BackendDescriptor{}, fmt.Errorf("backend %s: unknown capability %q", b.Key, name)
		}
		caps |= c
	}
	return ports.BackendDescriptor{
		Key:          b.Key,
		Aliases:      b.Aliases,
		Capabilities: caps,
		Version:      b.Version,
		Description:  b.Description,
	}, nil
}

// LoadConfig reads, fills in defaults and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates raw YAML config bytes. Unknown fields are
// rejected so typos surface at startup instead of silently defaulting.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{Thresholds: match.DefaultThresholds()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = Duration(10 * time.Minute)
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 256
	}
}

// Validate checks structural constraints and the threshold bands.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
