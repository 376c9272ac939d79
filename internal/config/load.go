package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "COMMANDQ"

// setDefaults registers every key with its default so AutomaticEnv can
// override values that never appear in a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.enabled", true)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime", "24h")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "commandq.db")
	v.SetDefault("store.url", "")

	v.SetDefault("engine.heartbeat_period", "11s")
	v.SetDefault("engine.heartbeat_max_iterations", 200)
	v.SetDefault("engine.executor_budget", "60s")
	v.SetDefault("engine.inactivity_threshold", "10s")
	v.SetDefault("engine.retry_delay", "30s")
	v.SetDefault("engine.unavailable_backoff", "15m")
	v.SetDefault("engine.default_retries", 10)
	v.SetDefault("engine.lock_file", "")

	v.SetDefault("connectivity.state_file", "")
	v.SetDefault("connectivity.initial", "online")
	v.SetDefault("connectivity.sync_over_cellular", true)
	v.SetDefault("connectivity.download_attachments_over_cellular", false)

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.timeline_sync", "*/15 * * * *")
	v.SetDefault("schedule.account_ids", []int64{})
}

// Load reads configuration from defaults, an optional config file and the
// environment. Environment variables take precedence over file values.
// The config file is taken from COMMANDQ_CONFIG_FILE, falling back to
// ./commandq.yaml when present.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("commandq")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		return errors.New("config validation failed: auth.jwt_secret is required when auth is enabled")
	}
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.URL == "" {
			return errors.New("config validation failed: store.url is required for the postgres driver")
		}
	case "sqlite":
		if cfg.Store.Path == "" {
			return errors.New("config validation failed: store.path is required for the sqlite driver")
		}
	}
	if cfg.Schedule.Enabled && cfg.Schedule.TimelineSync == "" {
		return errors.New("config validation failed: schedule.timeline_sync is required when the schedule is enabled")
	}

	return nil
}
