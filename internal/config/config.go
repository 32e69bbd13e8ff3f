package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDataDir = ".qsched"
	DefaultOmega   = 1.0

	// EnvFunctionsPath is consulted by the CLI when no explicit routine
	// file is configured. The library itself never reads it.
	EnvFunctionsPath = "QSCHED_FUNCTIONS"
)

// Config is the run configuration consumed by the CLI.
type Config struct {
	SchedulePath  string             `yaml:"schedule"`
	FunctionsPath string             `yaml:"functions_path"`
	DataDir       string             `yaml:"data"`
	StartTime     float64            `yaml:"start_time"`
	Omega         float64            `yaml:"omega"`
	External      map[string]float64 `yaml:"external"`
	Cache         CacheConfig        `yaml:"cache"`
	Track         string             `yaml:"track"`
}

// CacheConfig bounds the routine cache. Zero values mean unbounded.
type CacheConfig struct {
	MaxEntries int     `yaml:"max_entries"`
	TTLSeconds float64 `yaml:"ttl_seconds"`
}

// TTL converts the configured expiry to a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds * float64(time.Second))
}

func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		Omega:   DefaultOmega,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ExternalArgs flattens the configured system parameters into the fixed
// positional prefix handed to every routine.
func (c *Config) ExternalArgs() []any {
	if len(c.External) == 0 {
		return nil
	}
	return []any{c.External}
}
