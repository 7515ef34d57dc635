package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// Engine tunables.
	OnTimeToleranceMin  int     `mapstructure:"ON_TIME_TOLERANCE_MIN"`
	ReminderWindowMin   int     `mapstructure:"REMINDER_WINDOW_MIN"`
	MissedGraceHours    int     `mapstructure:"MISSED_GRACE_HOURS"`
	LookaheadDays       int     `mapstructure:"LOOKAHEAD_DAYS"`
	LowStockDays        int     `mapstructure:"LOW_STOCK_DAYS"`
	CriticalStockDays   int     `mapstructure:"CRITICAL_STOCK_DAYS"`
	AdherenceAlertPct   float64 `mapstructure:"ADHERENCE_ALERT_PCT"`
	AdherencePeriodDays int     `mapstructure:"ADHERENCE_PERIOD_DAYS"`

	// Sweep cadences (standard 5-field cron specs).
	ReminderCron  string `mapstructure:"REMINDER_CRON"`
	ReconcileCron string `mapstructure:"RECONCILE_CRON"`
	GenerateCron  string `mapstructure:"GENERATE_CRON"`
	AdherenceCron string `mapstructure:"ADHERENCE_CRON"`
	StockCron     string `mapstructure:"STOCK_CRON"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("ON_TIME_TOLERANCE_MIN", 30)
	v.SetDefault("REMINDER_WINDOW_MIN", 5)
	v.SetDefault("MISSED_GRACE_HOURS", 2)
	v.SetDefault("LOOKAHEAD_DAYS", 1)
	v.SetDefault("LOW_STOCK_DAYS", 5)
	v.SetDefault("CRITICAL_STOCK_DAYS", 2)
	v.SetDefault("ADHERENCE_ALERT_PCT", 80.0)
	v.SetDefault("ADHERENCE_PERIOD_DAYS", 30)
	v.SetDefault("REMINDER_CRON", "*/5 * * * *")
	v.SetDefault("RECONCILE_CRON", "0 * * * *")
	v.SetDefault("GENERATE_CRON", "30 0 * * *")
	v.SetDefault("ADHERENCE_CRON", "0 1 * * *")
	v.SetDefault("STOCK_CRON", "15 1 * * *")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"ON_TIME_TOLERANCE_MIN", "REMINDER_WINDOW_MIN", "MISSED_GRACE_HOURS",
		"LOOKAHEAD_DAYS", "LOW_STOCK_DAYS", "CRITICAL_STOCK_DAYS",
		"ADHERENCE_ALERT_PCT", "ADHERENCE_PERIOD_DAYS",
		"REMINDER_CRON", "RECONCILE_CRON", "GENERATE_CRON",
		"ADHERENCE_CRON", "STOCK_CRON",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the engine tunables are usable. Zero or negative
// windows would make the sweeps silently do nothing, so they are rejected
// up front.
func (c *Config) Validate() error {
	if c.OnTimeToleranceMin <= 0 {
		return fmt.Errorf("ON_TIME_TOLERANCE_MIN must be positive, got %d", c.OnTimeToleranceMin)
	}
	if c.ReminderWindowMin <= 0 {
		return fmt.Errorf("REMINDER_WINDOW_MIN must be positive, got %d", c.ReminderWindowMin)
	}
	if c.MissedGraceHours <= 0 {
		return fmt.Errorf("MISSED_GRACE_HOURS must be positive, got %d", c.MissedGraceHours)
	}
	if c.LookaheadDays < 0 {
		return fmt.Errorf("LOOKAHEAD_DAYS cannot be negative, got %d", c.LookaheadDays)
	}
	if c.AdherencePeriodDays <= 0 {
		return fmt.Errorf("ADHERENCE_PERIOD_DAYS must be positive, got %d", c.AdherencePeriodDays)
	}
	if c.AdherenceAlertPct < 0 || c.AdherenceAlertPct > 100 {
		return fmt.Errorf("ADHERENCE_ALERT_PCT must be in [0,100], got %g", c.AdherenceAlertPct)
	}
	if c.CriticalStockDays > c.LowStockDays {
		return fmt.Errorf("CRITICAL_STOCK_DAYS (%d) cannot exceed LOW_STOCK_DAYS (%d)",
			c.CriticalStockDays, c.LowStockDays)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Env, "development")
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
