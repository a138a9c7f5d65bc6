// Package config resolves client configuration from flags (viper-bound),
// environment variables, and an optional config file.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix (e.g. GRADCERT_BASE_URL).
const EnvPrefix = "GRADCERT"

// Config is the resolved client configuration.
type Config struct {
	BaseURL       string
	SessionPath   string
	DraftsPath    string
	HTTPTimeout   time.Duration
	CheckInterval time.Duration
}

// SetDefaults installs defaults on the global viper instance. Call before
// binding flags and before Load.
func SetDefaults() {
	viper.SetDefault("base_url", "http://127.0.0.1:8000")
	viper.SetDefault("http_timeout", 30*time.Second)
	viper.SetDefault("check_interval", 5*time.Minute)
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
}

// Load reads the configuration from the global viper instance, merging an
// optional config file from the user's configuration directory.
func Load() (Config, error) {
	configDir := applicationDir()

	if configDir != "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir)
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, errors.Wrap(err, "[config.Load] read config file")
			}
		}
	}

	cfg := Config{
		BaseURL:       viper.GetString("base_url"),
		SessionPath:   viper.GetString("session_path"),
		DraftsPath:    viper.GetString("drafts_path"),
		HTTPTimeout:   viper.GetDuration("http_timeout"),
		CheckInterval: viper.GetDuration("check_interval"),
	}

	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return Config{}, errors.New("[config.Load] base_url must be a valid URL")
	}
	if cfg.SessionPath == "" {
		if configDir == "" {
			return Config{}, errors.New("[config.Load] session_path must be set when no user config directory exists")
		}
		cfg.SessionPath = filepath.Join(configDir, "session")
	}
	if cfg.DraftsPath == "" && configDir != "" {
		cfg.DraftsPath = filepath.Join(configDir, "drafts.db")
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	return cfg, nil
}

func applicationDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "gradcert")
}
