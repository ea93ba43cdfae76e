// Package config loads application configuration from a yaml file or
// environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Server     ServerConfig
	Webhook    WebhookConfig
	Relay      RelayConfig
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Engine     EngineConfig
	Jobs       JobsConfig
}

// ServerConfig defines the HTTP listener settings.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// WebhookConfig defines inbound webhook limits.
type WebhookConfig struct {
	RatePerSec float64 `mapstructure:"rate_per_sec"`
	Burst      int     `mapstructure:"burst"`
}

// RelayConfig defines the alert relay stream connection.
type RelayConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// PostgresConfig defines the postgres connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ClickHouseConfig defines the clickhouse connection settings.
type ClickHouseConfig struct {
	Addr     string `mapstructure:"addr"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// EngineConfig defines the core engine parameters.
type EngineConfig struct {
	BarInterval  time.Duration `mapstructure:"bar_interval"`
	LogicVersion string        `mapstructure:"logic_version"`
	RecentWindow time.Duration `mapstructure:"recent_window"`
}

// JobsConfig defines cron schedules for the background jobs. Empty
// schedule disables the job.
type JobsConfig struct {
	Inference string `mapstructure:"inference"`
	Backfill  string `mapstructure:"backfill"`
	Coverage  string `mapstructure:"coverage"`
	Bias      string `mapstructure:"bias"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("webhook.rate_per_sec", 50.0)
	viper.SetDefault("webhook.burst", 100)
	viper.SetDefault("engine.bar_interval", "1m")
	viper.SetDefault("engine.logic_version", "v1")
	viper.SetDefault("engine.recent_window", "5m")
	viper.SetDefault("jobs.inference", "@every 1m")
	viper.SetDefault("jobs.backfill", "@every 5m")
	viper.SetDefault("jobs.coverage", "@every 30s")
	viper.SetDefault("jobs.bias", "@every 1m")
	viper.SetDefault("postgres.sslmode", "disable")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
