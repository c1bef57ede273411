package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/caarlos0/env/v11"
	"github.com/ganot/feeflow/internal/domain/folder"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/faults"
	"github.com/ganot/feeflow/internal/templates"
	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the variable pointing at an optional YAML file.
const ConfigPathEnv = "FEEFLOW_CONFIG_PATH"

// Config defines engine configuration.
type Config struct {
	BasePath  string           `yaml:"base_path" env:"FEEFLOW_BASE_PATH"`
	Roots     status.RootNames `yaml:"roots"`
	Server    ServerConfig     `yaml:"server"`
	Transport TransportConfig  `yaml:"transport"`
	DB        DBConfig         `yaml:"db"`
	Log       LogConfig        `yaml:"log"`
	Scan      ScanConfig       `yaml:"scan"`
	Templates TemplatesConfig  `yaml:"templates"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"FEEFLOW_SERVER_HOST"`
	Port int    `yaml:"port" env:"FEEFLOW_SERVER_PORT"`
}

type TransportConfig struct {
	Mode string `yaml:"mode" env:"FEEFLOW_TRANSPORT"`
}

type DBConfig struct {
	Path string `yaml:"path" env:"FEEFLOW_DB_PATH"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"FEEFLOW_LOG_LEVEL"`
	Path  string `yaml:"path" env:"FEEFLOW_LOG_PATH"`
}

type ScanConfig struct {
	// Interval between timer scans. Zero disables the timer.
	Interval time.Duration `yaml:"interval" env:"FEEFLOW_SCAN_INTERVAL"`
	Watch    bool          `yaml:"watch" env:"FEEFLOW_SCAN_WATCH"`
	Debounce time.Duration `yaml:"debounce" env:"FEEFLOW_SCAN_DEBOUNCE"`
	Ignore   []string      `yaml:"ignore" env:"FEEFLOW_SCAN_IGNORE" envSeparator:","`
}

type TemplatesConfig struct {
	// Source defaults to "<active root>/00 Additional Folders" below the base path.
	Source   string   `yaml:"source" env:"FEEFLOW_TEMPLATE_SOURCE"`
	Patterns []string `yaml:"patterns" env:"FEEFLOW_TEMPLATE_PATTERNS" envSeparator:","`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"FEEFLOW_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"FEEFLOW_SERVICE_NAME"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Roots: status.DefaultRootNames(),
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "stdio",
		},
		DB: DBConfig{
			Path: "feeflow.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Scan: ScanConfig{
			Interval: 15 * time.Minute,
			Debounce: 2 * time.Second,
		},
		Templates: TemplatesConfig{
			Patterns: append([]string(nil), templates.DefaultPatterns...),
		},
		Telemetry: TelemetryConfig{
			ServiceName: "feeflow",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
// Environment variables win over the file.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigPathEnv); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse env: %w", faults.ErrConfiguration, err)
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read config file: %w", faults.ErrConfiguration, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse config file: %w", faults.ErrConfiguration, err)
	}
	return nil
}

// Validate checks every setting and that the base path can be listed.
func (c Config) Validate() error {
	if err := folder.ValidateBase(c.BasePath); err != nil {
		return err
	}
	if _, err := c.FolderMap(); err != nil {
		return err
	}
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("%w: transport mode %q (want stdio or http)", faults.ErrConfiguration, c.Transport.Mode)
	}
	if c.Transport.Mode == "http" && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("%w: server port %d", faults.ErrConfiguration, c.Server.Port)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", faults.ErrConfiguration, c.Log.Level)
	}
	if c.Scan.Interval < 0 || c.Scan.Debounce < 0 {
		return fmt.Errorf("%w: scan interval and debounce must not be negative", faults.ErrConfiguration)
	}
	for _, p := range append(append([]string(nil), c.Scan.Ignore...), c.Templates.Patterns...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: invalid pattern %q", faults.ErrConfiguration, p)
		}
	}
	return nil
}

// FolderMap builds the status folder map over the configured root names.
func (c Config) FolderMap() (*status.FolderMap, error) {
	m, err := status.NewDefaultFolderMap(c.Roots)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", faults.ErrConfiguration, err)
	}
	return m, nil
}

// TemplateSource returns the award template directory.
func (c Config) TemplateSource() string {
	if c.Templates.Source != "" {
		return c.Templates.Source
	}
	return filepath.Join(c.BasePath, c.Roots.Current, templates.DefaultDirName)
}
