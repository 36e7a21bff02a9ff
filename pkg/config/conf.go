package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	AppName = "loanscore"

	configFileName = "config.yaml"
	historyFile    = "history.db"
	dirMode        = 0700
	fileMode       = 0600

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultAddress = "127.0.0.1:8080"

	EnvModel         = "LOANSCORE_MODEL"
	EnvHistory       = "LOANSCORE_HISTORY"
	EnvHistoryDriver = "LOANSCORE_HISTORY_DRIVER"
	EnvHistoryDSN    = "LOANSCORE_HISTORY_DSN"
	EnvLogLevel      = "LOANSCORE_LOG_LEVEL"
	EnvAddress       = "LOANSCORE_ADDRESS"
)

// Config represents app config object.
type Config struct {
	// ModelPath points to a model artifact. Empty selects the built-in model.
	ModelPath string        `yaml:"model_path"`
	LogLevel  string        `yaml:"log_level"`
	Format    string        `yaml:"format"`
	History   HistoryConfig `yaml:"history"`
	Server    ServerConfig  `yaml:"server"`
}

// HistoryConfig configures the assessment history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// Default returns the config used when no file exists. dir is where the
// sqlite history file lives.
func Default(dir string) *Config {
	return &Config{
		LogLevel: "info",
		Format:   "json",
		History: HistoryConfig{
			Enabled: false,
			Driver:  DriverSQLite,
			DSN:     filepath.Join(dir, historyFile),
		},
		Server: ServerConfig{
			Address: defaultAddress,
		},
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.History.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported history driver: %q (want %s or %s)", c.History.Driver, DriverSQLite, DriverPostgres)
	}
	if c.History.Enabled && c.History.DSN == "" {
		return errors.New("history enabled but no dsn configured")
	}
	return nil
}

// Save writes the config file into dirPath.
func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configFileName, err)
	}
	return nil
}

// ReadOrCreate reads app config from directory or creates a new one.
// Environment variables override values from the file.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, dirMode); err != nil {
			return nil, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
		}
	}

	path := filepath.Join(dirPath, configFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default config", "path", path)
		if err := Save(dirPath, Default(dirPath)); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	c := Default(dirPath)
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}

	applyEnv(c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

func applyEnv(c *Config) {
	envOverride(&c.ModelPath, EnvModel)
	envOverride(&c.History.Driver, EnvHistoryDriver)
	envOverride(&c.History.DSN, EnvHistoryDSN)
	envOverride(&c.LogLevel, EnvLogLevel)
	envOverride(&c.Server.Address, EnvAddress)

	if v := strings.TrimSpace(os.Getenv(EnvHistory)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.History.Enabled = b
		} else {
			slog.Warn("ignoring invalid env value", "key", EnvHistory, "value", v)
		}
	}
}

func envOverride(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

// GetOrCreateHomeDir returns the app directory in the current user home.
// The created flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}
	slog.Debug("home dir", "path", home)

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
