package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Onboarding OnboardingConfig `mapstructure:"onboarding"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Cache      CacheConfig      `mapstructure:"cache"`
	UI         UIConfig         `mapstructure:"ui"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// GatewayConfig holds the backend connection
type GatewayConfig struct {
	URL            string        `mapstructure:"url"`
	Token          string        `mapstructure:"token"`           // Bearer token, empty when the backend is unauthenticated
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // 0 = no timeout
}

// OnboardingConfig holds add-account settings
type OnboardingConfig struct {
	CloseDelay time.Duration `mapstructure:"close_delay"` // How long a success stays visible
}

// SyncConfig holds background sync settings
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables the external store sync
}

// CacheConfig holds snapshot cache settings
type CacheConfig struct {
	Dir string `mapstructure:"dir"` // Empty = memory only
}

// UIConfig holds UI configuration
type UIConfig struct {
	ConfirmDelete bool `mapstructure:"confirm_delete"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File      string `mapstructure:"file"`
	Level     string `mapstructure:"level"`
	MaxSizeMB int    `mapstructure:"max_size_mb"` // Rotate to <file>.1 past this size; 0 = never
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			URL: "http://127.0.0.1:45123",
		},
		Onboarding: OnboardingConfig{
			CloseDelay: 1500 * time.Millisecond,
		},
		Sync: SyncConfig{
			Interval: 30 * time.Second,
		},
		Cache: CacheConfig{
			Dir: defaultCachePath(),
		},
		UI: UIConfig{
			ConfirmDelete: true,
		},
		Logging: LoggingConfig{
			File:      defaultLogPath(),
			Level:     "INFO",
			MaxSizeMB: 10,
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "roster", "roster.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "roster", "roster.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "roster")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "roster")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "roster", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "roster", "cache")
	}
}

// newViper returns a viper instance with defaults, search paths and env
// overrides (ROSTER_GATEWAY_URL etc.) registered
func newViper(configPaths ...string) *viper.Viper {
	v := viper.New()
	def := DefaultConfig()

	v.SetDefault("gateway.url", def.Gateway.URL)
	v.SetDefault("gateway.token", def.Gateway.Token)
	v.SetDefault("gateway.request_timeout", def.Gateway.RequestTimeout)
	v.SetDefault("onboarding.close_delay", def.Onboarding.CloseDelay)
	v.SetDefault("sync.interval", def.Sync.Interval)
	v.SetDefault("cache.dir", def.Cache.Dir)
	v.SetDefault("ui.confirm_delete", def.UI.ConfirmDelete)
	v.SetDefault("logging.file", def.Logging.File)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.max_size_mb", def.Logging.MaxSizeMB)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}

	// Environment variable overrides
	v.SetEnvPrefix("ROSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	return loadConfig(defaultConfigPath(), ".")
}

func loadConfig(configPaths ...string) (*Config, error) {
	v := newViper(configPaths...)

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the app cannot run with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Gateway.URL) == "" {
		return fmt.Errorf("gateway.url must be set")
	}
	if c.Gateway.RequestTimeout < 0 {
		return fmt.Errorf("gateway.request_timeout must not be negative")
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval must not be negative")
	}
	if c.Logging.MaxSizeMB < 0 {
		return fmt.Errorf("logging.max_size_mb must not be negative")
	}
	return nil
}

// SaveConfig writes the configuration to the default config file
func SaveConfig(cfg *Config) error {
	return saveConfig(cfg, defaultConfigPath())
}

func saveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()

	// Set fields individually to ensure correct key names (snake_case)
	v.Set("gateway.url", cfg.Gateway.URL)
	v.Set("gateway.token", cfg.Gateway.Token)
	v.Set("gateway.request_timeout", cfg.Gateway.RequestTimeout.String())
	v.Set("onboarding.close_delay", cfg.Onboarding.CloseDelay.String())
	v.Set("sync.interval", cfg.Sync.Interval.String())
	v.Set("cache.dir", cfg.Cache.Dir)
	v.Set("ui.confirm_delete", cfg.UI.ConfirmDelete)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.max_size_mb", cfg.Logging.MaxSizeMB)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ClearCache removes all cached account snapshots
func ClearCache(cfg *Config) error {
	if cfg.Cache.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(cfg.Cache.Dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
