package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "NEWSDESK"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the application's configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // "postgres" or "sqlite"
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

type WorkflowConfig struct {
	PendingDefaultLimit int `mapstructure:"pending_default_limit"`
	PendingMaxLimit     int `mapstructure:"pending_max_limit"`
	MaxCommentLength    int `mapstructure:"max_comment_length"`
}

type AuthConfig struct {
	AdminRoles []string `mapstructure:"admin_roles"`
	APIToken   string   `mapstructure:"api_token"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("workflow.pending_default_limit", 20)
	v.SetDefault("workflow.pending_max_limit", 100)
	v.SetDefault("workflow.max_comment_length", 5000)
	v.SetDefault("auth.admin_roles", []string{"admin", "editor"})
	v.SetDefault("auth.api_token", "")
}

// Load reads defaults, an optional config.yaml (path, or ./config and the
// working directory when path is empty), .env and NEWSDESK_* environment
// variables, in increasing precedence.
func Load(path string) (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, "read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	// AutomaticEnv does not split comma-separated lists on its own.
	if roles := os.Getenv(envPrefix + "_AUTH_ADMIN_ROLES"); roles != "" {
		cfg.Auth.AdminRoles = splitList(roles)
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == DriverPostgres {
		cfg.Database.DSN = dsnFromEnv()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return errors.Errorf("unsupported database driver %q (want %q or %q)", c.Database.Driver, DriverPostgres, DriverSQLite)
	}
	if c.Workflow.PendingDefaultLimit <= 0 || c.Workflow.PendingMaxLimit <= 0 {
		return errors.New("workflow pending limits must be positive")
	}
	if c.Workflow.PendingDefaultLimit > c.Workflow.PendingMaxLimit {
		return errors.Errorf("workflow.pending_default_limit (%d) exceeds workflow.pending_max_limit (%d)",
			c.Workflow.PendingDefaultLimit, c.Workflow.PendingMaxLimit)
	}
	if c.Workflow.MaxCommentLength <= 0 {
		return errors.New("workflow.max_comment_length must be positive")
	}
	if len(c.Auth.AdminRoles) == 0 {
		return errors.New("auth.admin_roles must name at least one role")
	}
	return nil
}

// dsnFromEnv builds a Postgres DSN from DB_USERNAME, DB_PASSWORD, DB_HOST,
// DB_PORT and DB_NAME, or returns "" if any is missing.
func dsnFromEnv() string {
	dbUsername := os.Getenv("DB_USERNAME")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")
	if dbUsername == "" || dbPassword == "" || dbHost == "" || dbPort == "" || dbName == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUsername, dbPassword, dbHost, dbPort, dbName)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
