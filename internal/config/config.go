// This file defines the configuration structure for the application.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port    int `mapstructure:"port"`
	Backend struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"backend"`
	Progress struct {
		HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	} `mapstructure:"progress"`
	Batch struct {
		DelaySeconds       float64 `mapstructure:"delay_seconds"`
		GenerationMode     string  `mapstructure:"generation_mode"`
		UseGenerateForMeta bool    `mapstructure:"use_generate_for_meta"`
	} `mapstructure:"batch"`
	Form struct {
		Brand          string `mapstructure:"brand"`
		BusinessType   string `mapstructure:"business_type"`
		TargetAudience string `mapstructure:"target_audience"`
	} `mapstructure:"form"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	History struct {
		RetentionDays        int `mapstructure:"retention_days"`
		PruneIntervalMinutes int `mapstructure:"prune_interval_minutes"`
	} `mapstructure:"history"`
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
}

// Delay returns the pause between two batch items.
func (c *Config) Delay() time.Duration {
	if c.Batch.DelaySeconds <= 0 {
		return 0
	}
	return time.Duration(c.Batch.DelaySeconds * float64(time.Second))
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path falls back
// to config.yml in the current directory, which may be absent.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // name of config file (without extension)
		v.SetConfigType("yml")    // or "yaml"
		v.AddConfigPath(".")      // looking for config in the current directory
	}

	// Environment variables with a "SEO_BATCH_" prefix override the file,
	// e.g. SEO_BATCH_BACKEND_URL overrides `backend.url`.
	v.SetEnvPrefix("SEO_BATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			// Config file was found (or named explicitly) but could not be read
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8090)
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("progress.handshake_timeout", "5s")
	v.SetDefault("batch.delay_seconds", 2)
	v.SetDefault("batch.generation_mode", "auto")
	v.SetDefault("batch.use_generate_for_meta", false)
	v.SetDefault("form.brand", "")
	v.SetDefault("form.business_type", "")
	v.SetDefault("form.target_audience", "")
	v.SetDefault("database.path", "./seo-batch.db")
	v.SetDefault("history.retention_days", 30)
	v.SetDefault("history.prune_interval_minutes", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}
