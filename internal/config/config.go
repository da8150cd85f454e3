// Package config loads the scalux project file (scalux.yaml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/scalux/scalux/pkg/domain"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "scalux.yaml"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverBolt   = "bolt"
	DriverRedis  = "redis"
)

// Environment overrides.
const (
	EnvLogLevel    = "SCALUX_LOG_LEVEL"
	EnvStoreDriver = "SCALUX_STORE_DRIVER"
	EnvRedisAddr   = "SCALUX_REDIS_ADDR"
	EnvPort        = "SCALUX_PORT"
)

type Config struct {
	// Tree is the path of the definition file, relative to the config file.
	Tree string `mapstructure:"tree"`

	// Options maps selector labels to the node paths they inspect.
	Options map[string][]string `mapstructure:"options"`

	Store   StoreConfig   `mapstructure:"store"`
	History HistoryConfig `mapstructure:"history"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
}

type StoreConfig struct {
	Driver string        `mapstructure:"driver"`
	Path   string        `mapstructure:"path"`
	TTL    time.Duration `mapstructure:"ttl"`
	Redis  RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type HistoryConfig struct {
	Limit int `mapstructure:"limit"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Tree: "tree.yaml",
		Store: StoreConfig{
			Driver: DriverFile,
			Path:   filepath.Join(".scalux", "sessions"),
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "scalux:session:",
			},
		},
		History: HistoryConfig{Limit: domain.DefaultHistoryLimit},
		Server:  ServerConfig{Port: 8080},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the project file at path and applies environment overrides.
// An empty path means DefaultFile; a missing DefaultFile is not an error.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := Decode(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cfg.resolve(filepath.Dir(path))
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges a YAML document into cfg. Keys absent from data keep
// their current values.
func Decode(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if raw == nil {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// resolve makes file paths relative to the directory of the config file.
func (c *Config) resolve(dir string) {
	if c.Tree != "" && !filepath.IsAbs(c.Tree) {
		c.Tree = filepath.Join(dir, c.Tree)
	}
	if c.Store.Path != "" && !filepath.IsAbs(c.Store.Path) {
		c.Store.Path = filepath.Join(dir, c.Store.Path)
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvStoreDriver); ok && v != "" {
		c.Store.Driver = v
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		c.Store.Redis.Addr = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks value ranges and collects every problem.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverBolt, DriverRedis:
	default:
		errs = append(errs, &domain.ValidationError{Key: "store.driver", Reason: "must be memory, file, bolt or redis", Value: c.Store.Driver})
	}
	if c.History.Limit < 0 {
		errs = append(errs, &domain.ValidationError{Key: "history.limit", Reason: "must not be negative", Value: c.History.Limit})
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, &domain.ValidationError{Key: "server.port", Reason: "out of range", Value: c.Server.Port})
	}
	if c.Store.TTL < 0 {
		errs = append(errs, &domain.ValidationError{Key: "store.ttl", Reason: "must not be negative", Value: c.Store.TTL.String()})
	}
	return domain.Join(errs)
}
