// Package config loads application settings from defaults, an optional
// config file, a .env file and the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Local    LocalConfig    `mapstructure:"local"`
	Cloud    CloudConfig    `mapstructure:"cloud"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Kanji    KanjiConfig    `mapstructure:"kanji"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Log      LogConfig      `mapstructure:"log"`
}

// TelegramConfig holds bot settings
type TelegramConfig struct {
	Token    string `mapstructure:"token"`
	AdminIDs string `mapstructure:"admin_ids"` // comma separated Telegram user IDs
	Debug    bool   `mapstructure:"debug"`
}

// LocalConfig locates the device database
type LocalConfig struct {
	Path string `mapstructure:"path"`
}

// CloudConfig holds the progress document store settings
type CloudConfig struct {
	Driver  string        `mapstructure:"driver"`
	DSN     string        `mapstructure:"dsn"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SyncConfig tunes cloud synchronization
type SyncConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// KanjiConfig holds Kanji Alive API settings
type KanjiConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	APIHost       string        `mapstructure:"api_host"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
}

// ReminderConfig controls the daily streak reminder
type ReminderConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Hour    int  `mapstructure:"hour"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv keeps the environment names deployments already use
var legacyEnv = map[string]string{
	"telegram.token":     "TELEGRAM_BOT_TOKEN",
	"telegram.admin_ids": "ADMIN_USER_IDS",
	"cloud.driver":       "DB_TYPE",
	"cloud.dsn":          "DATABASE_URL",
	"kanji.api_key":      "RAPIDAPI_KEY",
	"kanji.api_host":     "RAPIDAPI_HOST",
	"reminder.enabled":   "ENABLE_SCHEDULER",
	"reminder.hour":      "NOTIFICATION_HOUR",
}

// Load reads configuration. configFile may be empty.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "error loading .env file")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NIHONGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "NIHONGO_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, errors.Wrapf(err, "bind %s", key)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_ids", "")
	v.SetDefault("telegram.debug", false)

	v.SetDefault("local.path", "data/device.db")

	v.SetDefault("cloud.driver", "sqlite")
	v.SetDefault("cloud.dsn", "data/cloud.db")
	v.SetDefault("cloud.timeout", 10*time.Second)

	v.SetDefault("sync.debounce", 2*time.Second)

	v.SetDefault("kanji.base_url", "https://kanjialive-api.p.rapidapi.com/api/public")
	v.SetDefault("kanji.api_key", "")
	v.SetDefault("kanji.api_host", "kanjialive-api.p.rapidapi.com")
	v.SetDefault("kanji.cache_ttl", time.Hour)
	v.SetDefault("kanji.rate_per_second", 5.0)

	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.hour", 19)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks values viper cannot check by type
func (c *Config) Validate() error {
	if c.Reminder.Hour < 0 || c.Reminder.Hour > 23 {
		return errors.Errorf("reminder hour %d out of range", c.Reminder.Hour)
	}
	if c.Sync.Debounce < 0 {
		return errors.New("sync debounce must not be negative")
	}
	if _, err := c.AdminIDs(); err != nil {
		return err
	}
	return nil
}

// AdminIDs parses the comma separated admin list
func (c *Config) AdminIDs() ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(c.Telegram.AdminIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid admin id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
