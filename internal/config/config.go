package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the engine and server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Routing RoutingConfig `yaml:"routing"`
	Carrier CarrierConfig `yaml:"carrier"`
	Dataset DatasetConfig `yaml:"dataset"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Port           string `yaml:"port" validate:"required,numeric"`
	AllowedOrigins string `yaml:"allowed_origins"`
	RateLimit      int    `yaml:"rate_limit" validate:"gte=0"` // requests per minute per client, 0 disables
	CacheEnabled   bool   `yaml:"cache_enabled"`
}

// RoutingConfig bounds route queries
type RoutingConfig struct {
	DefaultK int `yaml:"default_k" validate:"gte=1,lte=50"`
	MaxK     int `yaml:"max_k" validate:"gte=1,lte=50,gtefield=DefaultK"`
}

// CarrierConfig bounds carrier queries and index construction
type CarrierConfig struct {
	MaxSegments     int `yaml:"max_segments" validate:"gte=1,lte=10"`
	MaxPaths        int `yaml:"max_paths" validate:"gte=1"`
	MaxCombinations int `yaml:"max_combinations" validate:"gte=1"`
	MaxIndexedChain int `yaml:"max_indexed_chain" validate:"gte=2"`
}

// DatasetConfig selects where the bundle comes from
type DatasetConfig struct {
	Source  string        `yaml:"source" validate:"oneof=file postgres"`
	Path    string        `yaml:"path" validate:"required_if=Source file"`
	Refresh time.Duration `yaml:"refresh" validate:"gte=0"` // 0 disables periodic reload
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: "*",
			RateLimit:      120,
			CacheEnabled:   true,
		},
		Routing: RoutingConfig{
			DefaultK: 3,
			MaxK:     10,
		},
		Carrier: CarrierConfig{
			MaxSegments:     3,
			MaxPaths:        256,
			MaxCombinations: 64,
			MaxIndexedChain: 64,
		},
		Dataset: DatasetConfig{
			Source:  "file",
			Path:    "data/bundle.json",
			Refresh: 5 * time.Minute,
		},
	}
}

// Load reads an optional YAML file over the defaults, applies environment
// overrides and validates the result. An empty or missing path uses defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults only
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Server.Port = getEnv("API_PORT", cfg.Server.Port)
	cfg.Server.AllowedOrigins = getEnv("ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)
	cfg.Dataset.Source = getEnv("DATASET_SOURCE", cfg.Dataset.Source)
	cfg.Dataset.Path = getEnv("DATASET_PATH", cfg.Dataset.Path)

	ints := []struct {
		key string
		dst *int
	}{
		{"RATE_LIMIT", &cfg.Server.RateLimit},
		{"ROUTE_K", &cfg.Routing.DefaultK},
		{"ROUTE_MAX_K", &cfg.Routing.MaxK},
		{"CARRIER_MAX_SEGMENTS", &cfg.Carrier.MaxSegments},
		{"CARRIER_MAX_PATHS", &cfg.Carrier.MaxPaths},
		{"CARRIER_MAX_COMBINATIONS", &cfg.Carrier.MaxCombinations},
		{"CARRIER_MAX_INDEXED_CHAIN", &cfg.Carrier.MaxIndexedChain},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", e.key, v, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_ENABLED=%q: %w", v, err)
		}
		cfg.Server.CacheEnabled = b
	}

	if v := os.Getenv("DATASET_REFRESH"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DATASET_REFRESH=%q: %w", v, err)
		}
		cfg.Dataset.Refresh = d
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
