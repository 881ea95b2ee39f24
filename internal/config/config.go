package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DBPath string `mapstructure:"db_path"`
	DSN    string `mapstructure:"dsn"`
}

type ExecutorConfig struct {
	Runner        string        `mapstructure:"runner"` // process or docker
	Interpreter   string        `mapstructure:"interpreter"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ScratchDir    string        `mapstructure:"scratch_dir"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	DockerImage   string        `mapstructure:"docker_image"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

type ClientConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Log      LogConfig      `mapstructure:"log"`
	Client   ClientConfig   `mapstructure:"client"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	RunnerProcess = "process"
	RunnerDocker  = "docker"
)

// Load reads pylearn.yaml from the working directory or $HOME/.pylearn.
// A missing file is not an error. Environment variables prefixed with
// PYLEARN_ override file values (PYLEARN_SERVER_PORT, PYLEARN_STORAGE_DSN).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("pylearn")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.pylearn")
	return load(v)
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("pylearn")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand environment variable references in the DSN
	if strings.HasPrefix(cfg.Storage.DSN, "${") && strings.HasSuffix(cfg.Storage.DSN, "}") {
		cfg.Storage.DSN = os.Getenv(cfg.Storage.DSN[2 : len(cfg.Storage.DSN)-1])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".pylearn", "pylearn.db"))
	v.SetDefault("storage.dsn", "")
	v.SetDefault("executor.runner", RunnerProcess)
	v.SetDefault("executor.interpreter", "python3")
	v.SetDefault("executor.timeout", 5*time.Second)
	v.SetDefault("executor.scratch_dir", "")
	v.SetDefault("executor.max_concurrent", 0)
	v.SetDefault("executor.docker_image", "python:3.12-slim")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("client.server_url", "http://localhost:8080")
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.DBPath == "" {
			return errors.New("storage.db_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}

	switch c.Executor.Runner {
	case RunnerProcess, RunnerDocker:
	default:
		return fmt.Errorf("unknown executor runner: %s", c.Executor.Runner)
	}
	if c.Executor.Timeout <= 0 {
		return errors.New("executor.timeout must be positive")
	}
	if c.Executor.MaxConcurrent < 0 {
		return errors.New("executor.max_concurrent must not be negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	return nil
}

// NewLogger builds the process logger from the log settings.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Log.Level)}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
