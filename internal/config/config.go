package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Google    GoogleConfig    `mapstructure:"google"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SyncToken    string        `mapstructure:"sync_token"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GoogleConfig holds the OAuth2 client credentials used to refresh
// per-user calendar tokens.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// SyncConfig holds batch orchestration configuration
type SyncConfig struct {
	BatchSize  int           `mapstructure:"batch_size"`
	UserDelay  time.Duration `mapstructure:"user_delay"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
	MaxResults int64         `mapstructure:"max_results"`
	MaxDetails int           `mapstructure:"max_details"`
	MaxErrors  int           `mapstructure:"max_errors"`
}

// JobsConfig holds contact sync job queue configuration
type JobsConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	JobDelay  time.Duration `mapstructure:"job_delay"`
}

// SchedulerConfig holds the optional in-process nightly trigger. Most
// deployments drive the sync endpoints from external cron instead.
type SchedulerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()

	// Bind environment variables
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "120s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("sync.batch_size", 10)
	viper.SetDefault("sync.user_delay", "200ms")
	viper.SetDefault("sync.batch_delay", "2s")
	viper.SetDefault("sync.max_results", 250)
	viper.SetDefault("sync.max_details", 50)
	viper.SetDefault("sync.max_errors", 25)

	viper.SetDefault("jobs.batch_size", 20)
	viper.SetDefault("jobs.job_delay", "500ms")

	viper.SetDefault("scheduler.enabled", false)
	viper.SetDefault("scheduler.cron", "0 0 3 * * *")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.sync_token", "SYNC_TOKEN")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	// Google OAuth2 client
	viper.BindEnv("google.client_id", "GOOGLE_CLIENT_ID")
	viper.BindEnv("google.client_secret", "GOOGLE_CLIENT_SECRET")

	// Sync
	viper.BindEnv("sync.batch_size", "SYNC_BATCH_SIZE")
	viper.BindEnv("sync.user_delay", "SYNC_USER_DELAY")
	viper.BindEnv("sync.batch_delay", "SYNC_BATCH_DELAY")
	viper.BindEnv("sync.max_results", "SYNC_MAX_RESULTS")

	// Jobs
	viper.BindEnv("jobs.batch_size", "JOBS_BATCH_SIZE")
	viper.BindEnv("jobs.job_delay", "JOBS_JOB_DELAY")

	// Scheduler
	viper.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	viper.BindEnv("scheduler.cron", "SCHEDULER_CRON")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Server.SyncToken == "" {
		return fmt.Errorf("server sync_token is required for the scheduled endpoints")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		return fmt.Errorf("Google OAuth2 client credentials are required")
	}

	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync batch size must be greater than 0")
	}

	if c.Jobs.BatchSize <= 0 {
		return fmt.Errorf("jobs batch size must be greater than 0")
	}

	return nil
}
