package configs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable except the API key,
// which is read as APOLLO_IO_API_KEY.
const EnvPrefix = "APOLLO_MCP"

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// ErrMissingAPIKey is returned by Validate when no API key is configured.
var ErrMissingAPIKey = errors.New("API key is required (set APOLLO_IO_API_KEY or --api-key)")

// FileConfig defines the structure loaded from the YAML configuration file.
type FileConfig struct {
	Apollo struct {
		APIKey        string `yaml:"api_key"`
		BaseURL       string `yaml:"base_url"`
		LegacyBaseURL string `yaml:"legacy_base_url"`
		AppBaseURL    string `yaml:"app_base_url"`
	} `yaml:"apollo"`
	Transport                string        `yaml:"transport"`
	ListenAddr               string        `yaml:"listen_addr"`
	HTTPClientTimeout        time.Duration `yaml:"http_client_timeout"`
	ShutdownTimeout          time.Duration `yaml:"shutdown_timeout"`
	LogLevel                 string        `yaml:"log_level"`
	LogFile                  string        `yaml:"log_file"`
	OtelExporterOtlpEndpoint string        `yaml:"otel_exporter_otlp_endpoint"`
}

// Config holds the final application configuration.
// Precedence, lowest first: Defaults, YAML file, environment, explicit overrides.
type Config struct {
	ConfigFile string `envconfig:"CONFIG_FILE"`

	APIKey        string `envconfig:"APOLLO_IO_API_KEY"`
	BaseURL       string `envconfig:"BASE_URL"`
	LegacyBaseURL string `envconfig:"LEGACY_BASE_URL"`
	AppBaseURL    string `envconfig:"APP_BASE_URL"`

	Transport         string        `envconfig:"TRANSPORT"`
	ListenAddr        string        `envconfig:"LISTEN_ADDR"`
	HTTPClientTimeout time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`

	LogLevel string `envconfig:"LOG_LEVEL"`
	LogFile  string `envconfig:"LOG_FILE"`

	OtelExporterOtlpEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpSecure   bool   `envconfig:"OTEL_EXPORTER_OTLP_SECURE"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		BaseURL:           "https://api.apollo.io/api/v1",
		LegacyBaseURL:     "https://api.apollo.io/v1",
		AppBaseURL:        "https://app.apollo.io/api/v1",
		Transport:         TransportStdio,
		ListenAddr:        ":8080",
		HTTPClientTimeout: 30 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFile:           filepath.Join(os.TempDir(), "apollo-mcp.log"),
	}
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// Validate reports configuration errors that must prevent startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("invalid transport %q: must be %q or %q", c.Transport, TransportStdio, TransportHTTP)
	}
	if c.HTTPClientTimeout <= 0 {
		return fmt.Errorf("http client timeout must be positive, got %s", c.HTTPClientTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// Load builds the configuration from defaults, the optional YAML file, the
// environment and finally overrides (typically command line flags). Zero
// values in a layer leave the lower layer untouched.
func Load(overrides Config) (*Config, error) {
	// 1. Environment
	var envCfg Config
	if err := envconfig.Process(EnvPrefix, &envCfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	// 2. YAML file, if any
	path := overrides.ConfigFile
	if path == "" {
		path = envCfg.ConfigFile
	}
	var fileCfg Config
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		fileCfg = loaded
		slog.Debug("Loaded configuration from file.", "path", path)
	}

	// 3. Merge layers
	cfg := Defaults()
	for _, layer := range []Config{fileCfg, envCfg, overrides} {
		if err := mergo.Merge(&cfg, layer, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge configuration: %w", err)
		}
	}
	cfg.ConfigFile = path
	return &cfg, nil
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config file '%s': %w", path, err)
	}
	return Config{
		APIKey:                   fc.Apollo.APIKey,
		BaseURL:                  fc.Apollo.BaseURL,
		LegacyBaseURL:            fc.Apollo.LegacyBaseURL,
		AppBaseURL:               fc.Apollo.AppBaseURL,
		Transport:                fc.Transport,
		ListenAddr:               fc.ListenAddr,
		HTTPClientTimeout:        fc.HTTPClientTimeout,
		ShutdownTimeout:          fc.ShutdownTimeout,
		LogLevel:                 fc.LogLevel,
		LogFile:                  fc.LogFile,
		OtelExporterOtlpEndpoint: fc.OtelExporterOtlpEndpoint,
	}, nil
}
