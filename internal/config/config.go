package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"dashboard/internal/source"
)

// EnvPrefix prefixes every environment variable, e.g. DASHBOARD_SERVER_PORT.
const EnvPrefix = "DASHBOARD"

// FileEnv names the variable holding an optional YAML config file path.
const FileEnv = "DASHBOARD_CONFIG_FILE"

// Config is the complete application configuration. Precedence is
// defaults, then the YAML file, then environment variables.
type Config struct {
	Server  ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Data    DataConfig      `yaml:"data" envconfig:"DATA"`
	S3      source.S3Config `yaml:"s3" envconfig:"S3"`
	Logging LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	AllowedOrigins  []string      `yaml:"allowed_origins" split_words:"true"`
}

// DataConfig describes the dataset file.
type DataConfig struct {
	Path             string `yaml:"path" split_words:"true"`
	IdentifierColumn string `yaml:"identifier_column" split_words:"true"`
	// FirstYear and LastYear pin the year columns. Both zero means every
	// non-identifier column is a year.
	FirstYear        int    `yaml:"first_year" split_words:"true"`
	LastYear         int    `yaml:"last_year" split_words:"true"`
	Delimiter        string `yaml:"delimiter" split_words:"true"`
	Sheet            string `yaml:"sheet" split_words:"true"`
	DefaultSelection int    `yaml:"default_selection" split_words:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Data: DataConfig{
			Path:             "data/dataset.csv",
			IdentifierColumn: "Identifier",
			DefaultSelection: 3,
		},
		S3: source.S3Config{Region: "us-east-1"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the file named by
// DASHBOARD_CONFIG_FILE if set, and the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadFile overlays YAML values onto cfg. Keys absent from the file keep
// their current value.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	if c.Data.Path == "" {
		errs = append(errs, errors.New("data path is required"))
	}
	if strings.TrimSpace(c.Data.IdentifierColumn) == "" {
		errs = append(errs, errors.New("identifier column is required"))
	}
	if (c.Data.FirstYear == 0) != (c.Data.LastYear == 0) {
		errs = append(errs, errors.New("first_year and last_year must be set together"))
	} else if c.Data.FirstYear > c.Data.LastYear {
		errs = append(errs, fmt.Errorf("first_year %d after last_year %d", c.Data.FirstYear, c.Data.LastYear))
	}
	if n := len([]rune(c.Data.Delimiter)); n > 1 && c.Data.Comma() != '\t' {
		errs = append(errs, fmt.Errorf("delimiter %q must be a single character", c.Data.Delimiter))
	}
	if c.Data.DefaultSelection < 0 {
		errs = append(errs, errors.New("default_selection must not be negative"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Comma returns the configured delimiter, or zero to pick by extension.
func (d DataConfig) Comma() rune {
	switch strings.ToLower(d.Delimiter) {
	case `\t`, "tab":
		return '\t'
	}
	for _, r := range d.Delimiter {
		return r
	}
	return 0
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}
