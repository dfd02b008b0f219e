// Package config provides configuration management for JARVIS
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
	Speech  SpeechConfig  `mapstructure:"speech"`
	User    UserConfig    `mapstructure:"user"`
	Data    DataConfig    `mapstructure:"data"`
}

// WebhookConfig configures the webhook client
type WebhookConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryDelay time.Duration `mapstructure:"retry_delay"` // Offline status cooldown
}

// SpeechConfig configures the speech bridge and its engines
type SpeechConfig struct {
	Locale          string        `mapstructure:"locale"`
	Voice           string        `mapstructure:"voice"` // Preferred synthesis voice name
	AutoListenDelay time.Duration `mapstructure:"auto_listen_delay"`
	RecognizerURL   string        `mapstructure:"recognizer_url"` // Local transcription daemon; empty disables recognition
}

// UserConfig identifies the user
type UserConfig struct {
	ID string `mapstructure:"id"` // Overrides the stored identifier when set
}

// DataConfig configures local storage
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Webhook: WebhookConfig{
			URL:        "http://localhost:5678/webhook/javispro212",
			Timeout:    30 * time.Second,
			RetryDelay: 5 * time.Second,
		},
		Speech: SpeechConfig{
			Locale:          "en-US",
			Voice:           "David",
			AutoListenDelay: 1500 * time.Millisecond,
			RecognizerURL:   "",
		},
		User: UserConfig{
			ID: "",
		},
		Data: DataConfig{
			Dir: filepath.Join(home, ".jarvis"),
		},
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configDir, err := GetConfigDir()
	if err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	// Defaults register every key so env-only overrides are visible to
	// Unmarshal even before a config file exists.
	setDefaults(cfg)

	// Environment variable overrides, e.g. JARVIS_WEBHOOK_URL for
	// webhook.url.
	viper.SetEnvPrefix("JARVIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, use defaults and create one
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	viper.SetDefault("webhook.url", cfg.Webhook.URL)
	viper.SetDefault("webhook.timeout", cfg.Webhook.Timeout)
	viper.SetDefault("webhook.retry_delay", cfg.Webhook.RetryDelay)
	viper.SetDefault("speech.locale", cfg.Speech.Locale)
	viper.SetDefault("speech.voice", cfg.Speech.Voice)
	viper.SetDefault("speech.auto_listen_delay", cfg.Speech.AutoListenDelay)
	viper.SetDefault("speech.recognizer_url", cfg.Speech.RecognizerURL)
	viper.SetDefault("user.id", cfg.User.ID)
	viper.SetDefault("data.dir", cfg.Data.Dir)
}

// Save writes the configuration to file. It uses its own viper instance
// so explicit values never shadow env overrides in the running process.
func Save(cfg *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	v := viper.New()
	v.Set("webhook", cfg.Webhook)
	v.Set("speech", cfg.Speech)
	v.Set("user", cfg.User)
	v.Set("data", cfg.Data)

	return v.WriteConfigAs(filepath.Join(configDir, "config.yaml"))
}

// Watch re-reads the config file on change and invokes onChange with the
// updated configuration. Parse failures keep the previous values.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		cfg := DefaultConfig()
		if err := viper.Unmarshal(cfg); err != nil {
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".jarvis"), nil
}
