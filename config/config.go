// Package config loads runtime settings from the environment, an optional
// .env file and an optional YAML file named by CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

type Config struct {
	ServerPort     string
	ClientURL      string
	RequestTimeout time.Duration

	StoreDriver string
	MongoURI    string
	MongoDBName string
	SQLitePath  string

	JWTSecret        string
	TokenTTL         time.Duration
	AdminInviteToken string

	// PasswordBlacklistFile lists rejected passwords, one per line. Empty disables the check.
	PasswordBlacklistFile string

	LogFile       string
	LogLevel      string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("server_port", "8000")
	v.SetDefault("client_url", "*")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("store_driver", DriverMongo)
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_db_name", "task_manager")
	v.SetDefault("sqlite_path", "data/task-manager.db")
	v.SetDefault("token_ttl", "168h")
	v.SetDefault("admin_invite_token", "")
	v.SetDefault("password_blacklist_file", "")
	v.SetDefault("log_file", "logs/task-manager.log")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("log_max_age_days", 28)
	v.SetDefault("breaker_max_failures", 3)
	v.SetDefault("breaker_timeout", "5s")
}

// Load reads .env (if present) into the process environment, then resolves
// every key with environment variables taking precedence over CONFIG_FILE and
// the defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		ServerPort:            v.GetString("server_port"),
		ClientURL:             v.GetString("client_url"),
		RequestTimeout:        v.GetDuration("request_timeout"),
		StoreDriver:           strings.ToLower(v.GetString("store_driver")),
		MongoURI:              v.GetString("mongo_uri"),
		MongoDBName:           v.GetString("mongo_db_name"),
		SQLitePath:            v.GetString("sqlite_path"),
		JWTSecret:             v.GetString("jwt_secret"),
		TokenTTL:              v.GetDuration("token_ttl"),
		AdminInviteToken:      v.GetString("admin_invite_token"),
		PasswordBlacklistFile: v.GetString("password_blacklist_file"),
		LogFile:               v.GetString("log_file"),
		LogLevel:              v.GetString("log_level"),
		LogMaxSizeMB:          v.GetInt("log_max_size_mb"),
		LogMaxBackups:         v.GetInt("log_max_backups"),
		LogMaxAgeDays:         v.GetInt("log_max_age_days"),
		BreakerMaxFailures:    v.GetUint32("breaker_max_failures"),
		BreakerTimeout:        v.GetDuration("breaker_timeout"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if c.ServerPort == "" {
		return errors.New("SERVER_PORT is not set")
	}
	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" || c.MongoDBName == "" {
			return errors.New("MONGO_URI and MONGO_DB_NAME are required for the mongo store")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}
