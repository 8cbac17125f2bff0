// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config represents the application configuration structure.
type Config struct {
	Database struct {
		Path          string `mapstructure:"path"`
		MigrationMode string `mapstructure:"migration_mode"`
	} `mapstructure:"database"`
	Queue struct {
		RedisAddr  string `mapstructure:"redis_addr"`
		RedisDB    int    `mapstructure:"redis_db"`
		KeyPrefix  string `mapstructure:"key_prefix"`
		StatusTTL  int    `mapstructure:"status_ttl_seconds"`
	} `mapstructure:"queue"`
	Rclone struct {
		BinaryPath string `mapstructure:"binary_path"`
		ConfigDir  string `mapstructure:"config_dir"`
		BwLimit    string `mapstructure:"bw_limit"`
	} `mapstructure:"rclone"`
	Log struct {
		Level  string            `mapstructure:"level"`
		Levels map[string]string `mapstructure:"levels"`
	} `mapstructure:"log"`
	App struct {
		DataDir     string `mapstructure:"data_dir"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"app"`
	Scheduler struct {
		WakeIntervalSeconds int `mapstructure:"wake_interval_seconds"`
	} `mapstructure:"scheduler"`
	Monitor struct {
		S3PollIntervalSeconds int `mapstructure:"s3_poll_interval_seconds"`
		FSDebounceSeconds     int `mapstructure:"fs_debounce_seconds"`
	} `mapstructure:"monitor"`
	Throttle struct {
		DefaultLimit    int `mapstructure:"default_limit"`
		AcquireTimeoutSeconds int `mapstructure:"acquire_timeout_seconds"`
	} `mapstructure:"throttle"`
}

// Cfg is the global configuration instance.
var Cfg Config

// InitConfig initializes the application configuration from file and environment variables.
func InitConfig(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix("ORCHESTRATOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Only exit if it's not a "config file not found" error
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Println("Error reading config file:", err)
			os.Exit(1)
		}
		// Config file not found is acceptable; continue with defaults
	}

	if err := viper.Unmarshal(&Cfg); err != nil {
		fmt.Println("Unable to decode into struct:", err)
		os.Exit(1)
	}
}

func setDefaults() {
	viper.SetDefault("database.path", "orchestrator.db")
	viper.SetDefault("database.migration_mode", "versioned")
	viper.SetDefault("queue.redis_addr", "127.0.0.1:6379")
	viper.SetDefault("queue.redis_db", 0)
	viper.SetDefault("queue.key_prefix", "orchestrator")
	viper.SetDefault("queue.status_ttl_seconds", 86400)
	viper.SetDefault("rclone.binary_path", "rclone")
	viper.SetDefault("rclone.config_dir", "./rclone_configs")
	viper.SetDefault("rclone.bw_limit", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("app.data_dir", "./app_data")
	viper.SetDefault("app.environment", "production")
	viper.SetDefault("scheduler.wake_interval_seconds", 60)
	viper.SetDefault("monitor.s3_poll_interval_seconds", 60)
	viper.SetDefault("monitor.fs_debounce_seconds", 2)
	viper.SetDefault("throttle.default_limit", 5)
	viper.SetDefault("throttle.acquire_timeout_seconds", 30)
}

// BindFlags binds command-line flags to configuration values.
func BindFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "config file (default is ./config.toml)")
}
