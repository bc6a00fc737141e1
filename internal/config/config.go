// ABOUTME: Configuration loading and parsing for convai-gateway
// ABOUTME: Supports YAML or TOML files with env var expansion, env overrides, and duration parsing

package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// EnvDevelopment is the default environment name.
const EnvDevelopment = "development"

// Config represents the complete convai-gateway configuration
type Config struct {
	Environment string           `yaml:"environment" toml:"environment"`
	Server      ServerConfig     `yaml:"server" toml:"server"`
	ElevenLabs  ElevenLabsConfig `yaml:"elevenlabs" toml:"elevenlabs"`
	Storage     StorageConfig    `yaml:"storage" toml:"storage"`
	Auth        AuthConfig       `yaml:"auth" toml:"auth"`
	CORS        CORSConfig       `yaml:"cors" toml:"cors"`
	RateLimit   RateLimitConfig  `yaml:"rate_limit" toml:"rate_limit"`
	Logging     LoggingConfig    `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// ElevenLabsConfig holds provider API configuration
type ElevenLabsConfig struct {
	APIKey  string        `yaml:"api_key" toml:"api_key"`
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for file unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// StorageConfig selects and locates the ownership store
type StorageConfig struct {
	Backend    string `yaml:"backend" toml:"backend"`
	DataDir    string `yaml:"data_dir" toml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
	// AllowDevIdentity defaults to true only in the development environment.
	AllowDevIdentity *bool `yaml:"allow_dev_identity" toml:"allow_dev_identity"`
}

// CORSConfig holds cross-origin configuration for the web client
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// RateLimitConfig holds per-user request limits. RequestsPerSecond 0 disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration that runs a local development gateway.
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			HTTPAddr: "0.0.0.0:8001",
		},
		ElevenLabs: ElevenLabsConfig{
			BaseURL:    "https://api.elevenlabs.io/v1",
			TimeoutRaw: "30s",
		},
		Storage: StorageConfig{
			Backend: BackendJSON,
			DataDir: "data",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:3001",
				"https://localhost:3000",
				"https://localhost:3001",
			},
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 0,
			Burst:             20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Values not set in the file keep their Default() value.
// Environment variables in the format ${VAR_NAME} are expanded, then the
// environment overrides from ApplyEnv are applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return finish(cfg)
}

// FromEnv builds a Config from Default() and the process environment only.
func FromEnv() (*Config, error) {
	return finish(Default())
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnv(os.Getenv)

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if cfg.Storage.Backend == BackendSQLite && cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.Storage.DataDir, "convai.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides configuration from well-known environment variables:
// ELEVENLABS_API_KEY, ENVIRONMENT, PORT, ALLOWED_ORIGINS (comma separated)
// and CONVAI_DATA_DIR. Unset or empty variables leave the value alone.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("ELEVENLABS_API_KEY"); v != "" {
		c.ElevenLabs.APIKey = v
	}
	if v := getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := getenv("PORT"); v != "" {
		host := "0.0.0.0"
		if h, _, err := net.SplitHostPort(c.Server.HTTPAddr); err == nil {
			host = h
		}
		c.Server.HTTPAddr = net.JoinHostPort(host, v)
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORS.AllowedOrigins = origins
	}
	if v := getenv("CONVAI_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
}

// DevIdentityAllowed reports whether requests without an identity fall back
// to the development user.
func (c *Config) DevIdentityAllowed() bool {
	if c.Auth.AllowDevIdentity != nil {
		return *c.Auth.AllowDevIdentity
	}
	return c.Environment == EnvDevelopment
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
// A missing ElevenLabs API key is not an error; the gateway starts and
// provider operations fail until one is set.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}

	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if _, _, err := net.SplitHostPort(c.Server.HTTPAddr); err != nil {
		return fmt.Errorf("server.http_addr %q is not host:port: %w", c.Server.HTTPAddr, err)
	}

	u, err := url.Parse(c.ElevenLabs.BaseURL)
	if err != nil {
		return fmt.Errorf("elevenlabs.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("elevenlabs.base_url must use http or https scheme")
	}
	if c.ElevenLabs.Timeout <= 0 {
		return fmt.Errorf("elevenlabs.timeout must be positive")
	}

	switch c.Storage.Backend {
	case BackendJSON:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is required for the json backend")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendJSON, BackendSQLite, c.Storage.Backend)
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must not be negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit.burst must be at least 1 when rate limiting is enabled")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.ElevenLabs.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.ElevenLabs.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing elevenlabs.timeout %q: %w", cfg.ElevenLabs.TimeoutRaw, err)
		}
		cfg.ElevenLabs.Timeout = d
	}
	return nil
}
