package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ayurcare/panchakarma/internal/platform/calendar"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit      string   `mapstructure:"BODY_LIMIT"`
	PlanBodyLimit  string   `mapstructure:"PLAN_BODY_LIMIT"`
	HSTSEnabled    bool     `mapstructure:"HSTS_ENABLED"`

	CatalogFile            string `mapstructure:"CATALOG_FILE"`
	Timezone               string `mapstructure:"TIMEZONE"`
	MaxSessionsPerResource int    `mapstructure:"MAX_SESSIONS_PER_RESOURCE"`
	CalendarStartHour      int    `mapstructure:"CALENDAR_START_HOUR"`
	CalendarSlots          int    `mapstructure:"CALENDAR_SLOTS"`
	WeekStart              string `mapstructure:"WEEK_START"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT", "PLAN_BODY_LIMIT", "HSTS_ENABLED",
	"CATALOG_FILE", "TIMEZONE",
	"MAX_SESSIONS_PER_RESOURCE", "CALENDAR_START_HOUR", "CALENDAR_SLOTS", "WEEK_START",
}

// Load reads configuration from the environment, falling back to a .env file in the
// working directory. DATABASE_URL is optional: without it sessions live in memory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("BODY_LIMIT", "64K")
	v.SetDefault("PLAN_BODY_LIMIT", "256K")
	v.SetDefault("HSTS_ENABLED", false)
	v.SetDefault("TIMEZONE", "Asia/Kolkata")
	v.SetDefault("MAX_SESSIONS_PER_RESOURCE", calendar.DefaultMaxPerResource)
	v.SetDefault("CALENDAR_START_HOUR", 8)
	v.SetDefault("CALENDAR_SLOTS", 12)
	v.SetDefault("WEEK_START", "sunday")

	// Unmarshal only sees keys viper knows about.
	for _, k := range keys {
		v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

// Location resolves TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Layout returns the calendar grid shape.
func (c *Config) Layout() (calendar.Layout, error) {
	ws, err := calendar.ParseWeekday(c.WeekStart)
	if err != nil {
		return calendar.Layout{}, fmt.Errorf("WEEK_START: %w", err)
	}
	return calendar.Layout{StartHour: c.CalendarStartHour, Slots: c.CalendarSlots, WeekStart: ws}, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.DBMinConns < 0 || c.DBMaxConns < 1 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) and DB_MAX_CONNS (%d) must satisfy 0 <= min <= max, max >= 1", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.MaxSessionsPerResource < 1 {
		return fmt.Errorf("MAX_SESSIONS_PER_RESOURCE must be at least 1, got %d", c.MaxSessionsPerResource)
	}
	if c.CalendarSlots < 1 || c.CalendarStartHour < 0 || c.CalendarStartHour+c.CalendarSlots > 24 {
		return fmt.Errorf("calendar of %d slots from %02d:00 does not fit in a day", c.CalendarSlots, c.CalendarStartHour)
	}
	if _, err := c.Layout(); err != nil {
		return err
	}
	return nil
}
