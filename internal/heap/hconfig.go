package heap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ekroon/magnus/internal/config"
)

// Config tunes the reference heap. All fields are optional in YAML; zero
// values fall back to the defaults.
type Config struct {
	// GCInterval is the number of allocations between automatic collection
	// passes. 0 disables automatic collection (explicit Collect and
	// collectOnCall still run).
	GCInterval int `yaml:"gcInterval"`

	// CollectOnCall runs a full collection pass at every host-call boundary.
	// This is the aggressive setting the pinning tests rely on: every
	// suspension point moves every object.
	CollectOnCall bool `yaml:"collectOnCall"`

	// InitialCapacity is the starting cell capacity of the heap.
	InitialCapacity int `yaml:"initialCapacity"`

	// TraceGC logs each collection pass to the trace writer.
	TraceGC bool `yaml:"traceGC"`
}

// DefaultConfig is the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		GCInterval:      config.DefaultGCInterval,
		CollectOnCall:   true,
		InitialCapacity: config.DefaultInitialCapacity,
	}
}

func (c *Config) applyDefaults() {
	if c.GCInterval < 0 {
		c.GCInterval = 0
	}
	if c.InitialCapacity <= 0 {
		c.InitialCapacity = config.DefaultInitialCapacity
	}
}

// Validate rejects configurations the heap cannot honor.
func (c Config) Validate() error {
	if c.GCInterval < 0 {
		return fmt.Errorf("gcInterval must be >= 0, got %d", c.GCInterval)
	}
	if c.InitialCapacity < 0 {
		return fmt.Errorf("initialCapacity must be >= 0, got %d", c.InitialCapacity)
	}
	return nil
}

// LoadConfig reads a YAML heap configuration. Unknown fields are rejected so
// typos surface instead of silently using defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading heap config: %w", err)
	}
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}
