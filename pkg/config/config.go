// Package config loads passiogo settings from an optional YAML file, a .env
// file and PASSIOGO_* environment variables, in that order of precedence
// (later wins). Command-line flags are applied on top by main.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PASSIOGO_"

type TrackerConfig struct {
	SystemIDs []int64       `yaml:"system_ids" validate:"dive,gt=0"`
	Interval  time.Duration `yaml:"interval" validate:"gt=0"`
	DryRun    bool          `yaml:"dry_run"`
}

type LokiConfig struct {
	URL      string `yaml:"url" validate:"omitempty,url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type ServerConfig struct {
	ListenAddr     string   `yaml:"listen_addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	BaseURL   string        `yaml:"base_url" validate:"required,url"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
	UserAgent string        `yaml:"user_agent" validate:"required"`
	Tracker   TrackerConfig `yaml:"tracker"`
	Loki      LokiConfig    `yaml:"loki"`
	Server    ServerConfig  `yaml:"server"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL:   "https://passiogo.com",
		Timeout:   30 * time.Second,
		UserAgent: "passiogo/1.0.0",
		Tracker: TrackerConfig{
			Interval: 30 * time.Second,
		},
		Loki: LokiConfig{
			URL: "http://localhost:3100",
		},
		Server: ServerConfig{
			ListenAddr:     ":8080",
			AllowedOrigins: []string{"*"},
		},
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints. main calls it again after applying
// flags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get("BASE_URL"); ok {
		c.BaseURL = v
	}
	if v, ok := get("USER_AGENT"); ok {
		c.UserAgent = v
	}
	if v, ok := get("TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sTIMEOUT: %w", envPrefix, err)
		}
		c.Timeout = d
	}

	if v, ok := get("SYSTEM_IDS"); ok {
		ids, err := ParseSystemIDs(v)
		if err != nil {
			return fmt.Errorf("invalid %sSYSTEM_IDS: %w", envPrefix, err)
		}
		c.Tracker.SystemIDs = ids
	}
	if v, ok := get("INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sINTERVAL: %w", envPrefix, err)
		}
		c.Tracker.Interval = d
	}
	if v, ok := get("DRY_RUN"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sDRY_RUN: %w", envPrefix, err)
		}
		c.Tracker.DryRun = b
	}

	if v, ok := get("LOKI_URL"); ok {
		c.Loki.URL = v
	}
	if v, ok := get("LOKI_USER"); ok {
		c.Loki.User = v
	}
	if v, ok := get("LOKI_PASSWORD"); ok {
		c.Loki.Password = v
	}

	if v, ok := get("LISTEN_ADDR"); ok {
		c.Server.ListenAddr = v
	}
	if v, ok := get("ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}

	return nil
}

// ParseSystemIDs parses a comma-separated list of system ids. Empty items
// are ignored.
func ParseSystemIDs(s string) ([]int64, error) {
	var ids []int64
	for _, item := range splitList(s) {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("system id %q is not a number", item)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
