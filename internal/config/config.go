// Package config provides configuration management for Cadence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/schedule"
)

const defaultDataDir = "~/.cadence"

// Config holds all configuration for the Cadence application.
type Config struct {
	Timezone      string             `mapstructure:"timezone"`
	Generation    GenerationConfig   `mapstructure:"generation"`
	Reminders     ReminderConfig     `mapstructure:"reminders"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	MCP           MCPConfig          `mapstructure:"mcp"`
}

// GenerationConfig holds instance generation settings.
type GenerationConfig struct {
	// MaxInstances is the default count for bounded generation.
	MaxInstances int `mapstructure:"max_instances"`
	// HorizonDays is how far ahead "generate --range" looks by default.
	HorizonDays     int      `mapstructure:"horizon_days"`
	DefaultDuration Duration `mapstructure:"default_duration"`
	// Holidays are calendar dates formatted as 2006-01-02.
	Holidays     []string `mapstructure:"holidays"`
	WorkdayStart string   `mapstructure:"workday_start"`
	WorkdayEnd   string   `mapstructure:"workday_end"`
}

// ReminderConfig holds reminder runtime settings.
type ReminderConfig struct {
	// MaxSnoozes caps snoozes per instance; 0 means unlimited.
	MaxSnoozes    int      `mapstructure:"max_snoozes"`
	DefaultSnooze Duration `mapstructure:"default_snooze"`
	SyncInterval  Duration `mapstructure:"sync_interval"`
}

// NotificationConfig holds notification settings.
type NotificationConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	Sound         bool `mapstructure:"sound"`
	RatePerMinute int  `mapstructure:"rate_per_minute"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// MCPConfig holds MCP server settings.
type MCPConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Duration is a wrapper around time.Duration for TOML parsing.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// String returns the string representation of the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone: "Local",
		Generation: GenerationConfig{
			MaxInstances:    10,
			HorizonDays:     30,
			DefaultDuration: Duration(domain.DefaultInstanceDuration),
			Holidays:        []string{},
			WorkdayStart:    "09:00",
			WorkdayEnd:      "17:00",
		},
		Reminders: ReminderConfig{
			MaxSnoozes:    3,
			DefaultSnooze: Duration(10 * time.Minute),
			SyncInterval:  Duration(time.Minute),
		},
		Notifications: NotificationConfig{
			Enabled:       true,
			Sound:         true,
			RatePerMinute: 6,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		MCP: MCPConfig{
			Enabled: true,
		},
	}
}

// Load loads the configuration from the default config file, creating it
// with defaults when it does not exist yet.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from configPath.
func LoadFrom(configPath string) (*Config, error) {
	v, err := open(configPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch loads configPath and calls onChange with the re-read configuration
// every time the file is written.
func Watch(configPath string, onChange func(*Config, error)) (*Config, error) {
	v, err := open(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(decode(v))
	})
	v.WatchConfig()

	return cfg, nil
}

// Set changes one dotted key such as "reminders.max_snoozes" in the file at
// configPath and returns the resulting configuration.
func Set(configPath, key, value string) (*Config, error) {
	v, err := open(configPath)
	if err != nil {
		return nil, err
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if !slices.Contains(Keys(), key) {
		return nil, fmt.Errorf("unknown config key %q", key)
	}

	v.Set(key, value)
	cfg, err := decode(v)
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if _, err := cfg.ScheduleOptions(); err != nil {
		return nil, err
	}
	if err := SaveTo(configPath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Keys lists the settable configuration keys, sorted.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	slices.Sort(keys)
	return keys
}

func open(configPath string) (*viper.Viper, error) {
	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// If config file doesn't exist, create it with defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(configPath, DefaultConfig()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	dataDir, err := expandHome(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.Storage.DataDir = dataDir

	return &cfg, nil
}

// expandHome resolves a leading "~" and the empty default.
func expandHome(dir string) (string, error) {
	if dir == "" {
		dir = defaultDataDir
	}
	if dir != "~" && !strings.HasPrefix(dir, "~/") {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(dir, "~")), nil
}

// Save saves the configuration to the default config file.
func Save(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveTo(configPath, cfg)
}

// SaveTo writes the configuration to configPath.
func SaveTo(configPath string, cfg *Config) error {
	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	v.Set("timezone", cfg.Timezone)
	v.Set("generation.max_instances", cfg.Generation.MaxInstances)
	v.Set("generation.horizon_days", cfg.Generation.HorizonDays)
	v.Set("generation.default_duration", cfg.Generation.DefaultDuration.String())
	v.Set("generation.holidays", cfg.Generation.Holidays)
	v.Set("generation.workday_start", cfg.Generation.WorkdayStart)
	v.Set("generation.workday_end", cfg.Generation.WorkdayEnd)
	v.Set("reminders.max_snoozes", cfg.Reminders.MaxSnoozes)
	v.Set("reminders.default_snooze", cfg.Reminders.DefaultSnooze.String())
	v.Set("reminders.sync_interval", cfg.Reminders.SyncInterval.String())
	v.Set("notifications.enabled", cfg.Notifications.Enabled)
	v.Set("notifications.sound", cfg.Notifications.Sound)
	v.Set("notifications.rate_per_minute", cfg.Notifications.RatePerMinute)
	v.Set("storage.data_dir", cfg.Storage.DataDir)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.console", cfg.Logging.Console)
	v.Set("mcp.enabled", cfg.MCP.Enabled)

	return v.WriteConfigAs(configPath)
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cadence", "config.toml"), nil
}

// GetDBPath returns the path to the database file.
func GetDBPath(cfg *Config) string {
	return filepath.Join(cfg.Storage.DataDir, "cadence.db")
}

// setDefaults sets default values for viper.
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("timezone", defaults.Timezone)
	v.SetDefault("generation.max_instances", defaults.Generation.MaxInstances)
	v.SetDefault("generation.horizon_days", defaults.Generation.HorizonDays)
	v.SetDefault("generation.default_duration", "1h0m0s")
	v.SetDefault("generation.holidays", []string{})
	v.SetDefault("generation.workday_start", defaults.Generation.WorkdayStart)
	v.SetDefault("generation.workday_end", defaults.Generation.WorkdayEnd)
	v.SetDefault("reminders.max_snoozes", defaults.Reminders.MaxSnoozes)
	v.SetDefault("reminders.default_snooze", "10m0s")
	v.SetDefault("reminders.sync_interval", "1m0s")
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.sound", true)
	v.SetDefault("notifications.rate_per_minute", defaults.Notifications.RatePerMinute)
	v.SetDefault("storage.data_dir", defaultDataDir)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.console", true)
	v.SetDefault("mcp.enabled", true)
}

// Clock returns the wall clock in the configured timezone.
func (c *Config) Clock() domain.Clock {
	return domain.SystemClock{Timezone: c.Timezone}
}

// ScheduleOptions converts the generation section into generator options.
func (c *Config) ScheduleOptions() (schedule.Options, error) {
	opts := schedule.DefaultOptions()

	if c.Generation.WorkdayStart != "" {
		start, err := parseClock(c.Generation.WorkdayStart)
		if err != nil {
			return opts, fmt.Errorf("invalid generation.workday_start: %w", err)
		}
		opts.WorkdayStart = start
	}
	if c.Generation.WorkdayEnd != "" {
		end, err := parseClock(c.Generation.WorkdayEnd)
		if err != nil {
			return opts, fmt.Errorf("invalid generation.workday_end: %w", err)
		}
		opts.WorkdayEnd = end
	}
	if opts.WorkdayEnd <= opts.WorkdayStart {
		return opts, fmt.Errorf("workday_end %s must be after workday_start %s", c.Generation.WorkdayEnd, c.Generation.WorkdayStart)
	}

	for _, raw := range c.Generation.Holidays {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return opts, fmt.Errorf("invalid holiday %q: %w", raw, err)
		}
		opts.Holidays = append(opts.Holidays, domain.NewDate(day.Year(), day.Month(), day.Day(), c.Timezone))
	}

	return opts, nil
}

// parseClock turns "HH:MM" into an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
