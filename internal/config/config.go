// Package config loads notevault configuration from
// ~/.notevault/config.yaml and NOTEVAULT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// S3Config configures the remote transfer backend.
type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
	Prefix string `mapstructure:"prefix"`
}

// Config holds all notevault settings.
type Config struct {
	DBPath      string   `mapstructure:"db_path"`
	StagingDir  string   `mapstructure:"staging_dir"`
	LogFile     string   `mapstructure:"log_file"`
	MaxVersions int      `mapstructure:"max_versions"`
	S3          S3Config `mapstructure:"s3"`
}

// Dir returns the notevault home directory, honoring NOTEVAULT_HOME.
func Dir() string {
	if dir := os.Getenv("NOTEVAULT_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".notevault")
}

// Load reads configuration, applying defaults for anything unset.
// A missing config file is not an error; a malformed one is.
func Load() (*Config, error) {
	dir := Dir()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("NOTEVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db_path", filepath.Join(dir, "notes.db"))
	v.SetDefault("staging_dir", filepath.Join(dir, "sync"))
	v.SetDefault("log_file", "")
	v.SetDefault("max_versions", 10)
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.prefix", "notes/")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
