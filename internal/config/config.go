// Package config loads and validates application configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rinkside/standwatch/internal/models"
)

// Config represents the complete application configuration.
type Config struct {
	Session   SessionConfig   `mapstructure:"session"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Reasoning ReasoningConfig `mapstructure:"reasoning"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SessionConfig holds replay and drift-detection behavior.
type SessionConfig struct {
	WindowMinutes   int     `mapstructure:"window_minutes"`
	DefaultSpeed    float64 `mapstructure:"default_speed"`
	MinSpeed        float64 `mapstructure:"min_speed"`
	MaxSpeed        float64 `mapstructure:"max_speed"`
	SkipAI          bool    `mapstructure:"skip_ai"`
	DebounceWindows int     `mapstructure:"debounce_windows"`
	TrendLookback   int     `mapstructure:"trend_lookback"`
	TrendHysteresis float64 `mapstructure:"trend_hysteresis"`
	NoisePct        float64 `mapstructure:"noise_pct"`
	EventBuffer     int     `mapstructure:"event_buffer"`
}

// ForecastConfig holds baseline forecast parameters.
type ForecastConfig struct {
	ReferenceAttendance float64 `mapstructure:"reference_attendance"`
	LowBand             float64 `mapstructure:"low_band"`
	HighBand            float64 `mapstructure:"high_band"`
}

// ReasoningConfig holds the drift-classification capability settings.
type ReasoningConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds persistence configuration. An empty DBPath disables
// recording entirely.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ScheduledSession describes a session the scheduler starts automatically.
type ScheduledSession struct {
	Cron         string  `mapstructure:"cron"`
	Scenario     string  `mapstructure:"scenario"`
	Opponent     string  `mapstructure:"opponent"`
	Attendance   int     `mapstructure:"attendance"`
	PuckDropHour int     `mapstructure:"puck_drop_hour"`
	Playoff      bool    `mapstructure:"playoff"`
	TempMean     float64 `mapstructure:"temp_mean"`
	Speed        float64 `mapstructure:"speed"`
}

// ScheduleConfig holds cron-driven auto-start entries.
type ScheduleConfig struct {
	Sessions []ScheduledSession `mapstructure:"sessions"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("STANDWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no file read.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("session.window_minutes", 2)
	v.SetDefault("session.default_speed", 60.0)
	v.SetDefault("session.min_speed", 1.0)
	v.SetDefault("session.max_speed", 500.0)
	v.SetDefault("session.skip_ai", false)
	v.SetDefault("session.debounce_windows", 5)
	v.SetDefault("session.trend_lookback", 3)
	v.SetDefault("session.trend_hysteresis", 0.05)
	v.SetDefault("session.noise_pct", 0.08)
	v.SetDefault("session.event_buffer", 256)

	v.SetDefault("forecast.reference_attendance", 4500.0)
	v.SetDefault("forecast.low_band", 0.80)
	v.SetDefault("forecast.high_band", 1.20)

	v.SetDefault("reasoning.enabled", false)
	v.SetDefault("reasoning.endpoint", "https://api.anthropic.com/v1/messages")
	v.SetDefault("reasoning.model", "claude-haiku-4-5")
	v.SetDefault("reasoning.timeout", "8s")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.db_path", "./data/standwatch.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	s := c.Session
	if s.WindowMinutes < 1 || s.WindowMinutes > 20 {
		return fmt.Errorf("session.window_minutes must be between 1 and 20")
	}
	if s.MinSpeed < 1 {
		return fmt.Errorf("session.min_speed must be at least 1")
	}
	if s.MaxSpeed < s.MinSpeed {
		return fmt.Errorf("session.max_speed must be >= session.min_speed")
	}
	if s.DefaultSpeed < s.MinSpeed || s.DefaultSpeed > s.MaxSpeed {
		return fmt.Errorf("session.default_speed must be within [min_speed, max_speed]")
	}
	if s.DebounceWindows < 1 {
		return fmt.Errorf("session.debounce_windows must be at least 1")
	}
	if s.TrendLookback < 1 {
		return fmt.Errorf("session.trend_lookback must be at least 1")
	}
	if s.TrendHysteresis < 0 || s.TrendHysteresis > 0.5 {
		return fmt.Errorf("session.trend_hysteresis must be between 0 and 0.5")
	}
	if s.NoisePct < 0 || s.NoisePct > 0.5 {
		return fmt.Errorf("session.noise_pct must be between 0 and 0.5")
	}
	// A session emits roughly one event per window plus bookends. Without a
	// subscriber draining the channel, a buffer smaller than that blocks the
	// run mid-game, so the floor is tied to the window count.
	if floor := len(models.GameWindows(s.WindowMinutes)) + 8; s.EventBuffer < floor {
		return fmt.Errorf("session.event_buffer must be at least %d for %d-minute windows",
			floor, s.WindowMinutes)
	}

	if c.Forecast.ReferenceAttendance <= 0 {
		return fmt.Errorf("forecast.reference_attendance must be positive")
	}
	if c.Forecast.LowBand <= 0 || c.Forecast.LowBand > 1.0 {
		return fmt.Errorf("forecast.low_band must be in (0, 1]")
	}
	if c.Forecast.HighBand < 1.0 {
		return fmt.Errorf("forecast.high_band must be at least 1.0")
	}

	if c.Reasoning.Enabled {
		if c.Reasoning.Endpoint == "" {
			return fmt.Errorf("reasoning.endpoint is required when reasoning is enabled")
		}
		if c.Reasoning.APIKey == "" {
			return fmt.Errorf("reasoning.api_key is required when reasoning is enabled")
		}
		if c.Reasoning.Timeout < 100*time.Millisecond {
			return fmt.Errorf("reasoning.timeout must be at least 100ms")
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	for i, sched := range c.Schedule.Sessions {
		if sched.Cron == "" {
			return fmt.Errorf("schedule.sessions[%d].cron is required", i)
		}
		if sched.Scenario == "" {
			return fmt.Errorf("schedule.sessions[%d].scenario is required", i)
		}
		if sched.Attendance <= 0 {
			return fmt.Errorf("schedule.sessions[%d].attendance must be positive", i)
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
