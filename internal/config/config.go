package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"       validate:"required"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Store        StoreConfig        `mapstructure:"store"        validate:"required"`
	Engine       EngineConfig       `mapstructure:"engine"       validate:"required"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity" validate:"required"`
	Schedule     ScheduleConfig     `mapstructure:"schedule"`
}

// ServerConfig contains the control API and logging settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	Enabled  bool   `mapstructure:"enabled"`
}

// AuthConfig contains the bearer-token settings of the control API.
type AuthConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	JWTSecret     string        `mapstructure:"jwt_secret"     validate:"omitempty,min=32"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gte=0"`
}

// StoreConfig selects where queue contents are persisted.
type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite postgres memory"`
	Path   string `mapstructure:"path"`
	URL    string `mapstructure:"url"    validate:"omitempty,url"`
}

// EngineConfig tunes the executor pool, heartbeat and lifecycle controller.
type EngineConfig struct {
	HeartbeatPeriod        time.Duration `mapstructure:"heartbeat_period"         validate:"gt=0"`
	HeartbeatMaxIterations int           `mapstructure:"heartbeat_max_iterations" validate:"gt=0"`
	ExecutorBudget         time.Duration `mapstructure:"executor_budget"          validate:"gt=0"`
	InactivityThreshold    time.Duration `mapstructure:"inactivity_threshold"     validate:"gte=0"`
	RetryDelay             time.Duration `mapstructure:"retry_delay"              validate:"gte=0"`
	UnavailableBackoff     time.Duration `mapstructure:"unavailable_backoff"      validate:"gte=0"`
	DefaultRetries         int           `mapstructure:"default_retries"          validate:"gte=0"`
	LockFile               string        `mapstructure:"lock_file"`
}

// ConnectivityConfig holds the initial connectivity class and the user policy flags.
type ConnectivityConfig struct {
	StateFile                       string `mapstructure:"state_file"`
	Initial                         string `mapstructure:"initial"                            validate:"required,oneof=offline wifi online"`
	SyncOverCellular                bool   `mapstructure:"sync_over_cellular"`
	DownloadAttachmentsOverCellular bool   `mapstructure:"download_attachments_over_cellular"`
}

// ScheduleConfig configures the optional periodic timeline sync trigger.
type ScheduleConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	TimelineSync string  `mapstructure:"timeline_sync"`
	AccountIDs   []int64 `mapstructure:"account_ids"`
}
