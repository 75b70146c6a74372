// Package config loads the service configuration from YAML with environment
// overrides.
//
// Precedence (lowest to highest): defaults, config file, .env file,
// process environment, command-line flags (applied by cmd/server).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
	JSON  bool   `yaml:"json"`
}

// SMTPConfig enables email notifications when Host is set.
type SMTPConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	From     string `yaml:"from,omitempty"`
}

func (s SMTPConfig) Enabled() bool { return s.Host != "" }

type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`

	// GenerateCron runs the planner for every active subscription.
	GenerateCron string `yaml:"generate_cron"`

	// ReminderCron sends reminders for placements ReminderDaysAhead out.
	ReminderCron      string `yaml:"reminder_cron"`
	ReminderDaysAhead int    `yaml:"reminder_days_ahead"`
}

type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	// Timezone is the IANA zone that defines "today" for scheduling.
	Timezone string `yaml:"timezone"`

	CORSOrigins []string `yaml:"cors_origins"`

	Log       LogConfig       `yaml:"log"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// HolidayCacheTTL bounds how long holiday definitions are cached.
	HolidayCacheTTL time.Duration `yaml:"holiday_cache_ttl"`
}

const (
	defaultListen       = ":8080"
	defaultDBPath       = "flags.db"
	defaultTimezone     = "America/New_York"
	defaultGenerateCron = "0 2 * * *"
	defaultReminderCron = "0 8 * * *"
	defaultReminderDays = 2
	defaultCacheTTL     = 5 * time.Minute
	defaultSMTPPort     = 587
)

func Default() *Config {
	return &Config{
		Listen:      defaultListen,
		DBPath:      defaultDBPath,
		Timezone:    defaultTimezone,
		CORSOrigins: []string{"*"},
		Log:         LogConfig{Level: "info"},
		Scheduler: SchedulerConfig{
			Enabled:           true,
			GenerateCron:      defaultGenerateCron,
			ReminderCron:      defaultReminderCron,
			ReminderDaysAhead: defaultReminderDays,
		},
		HolidayCacheTTL: defaultCacheTTL,
	}
}

// Normalize fills zero values with defaults so partial files behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.SMTP.Host != "" && c.SMTP.Port == 0 {
		c.SMTP.Port = defaultSMTPPort
	}
	if c.Scheduler.GenerateCron == "" {
		c.Scheduler.GenerateCron = defaultGenerateCron
	}
	if c.Scheduler.ReminderCron == "" {
		c.Scheduler.ReminderCron = defaultReminderCron
	}
	if c.Scheduler.ReminderDaysAhead < 0 {
		c.Scheduler.ReminderDaysAhead = defaultReminderDays
	}
	if c.HolidayCacheTTL <= 0 {
		c.HolidayCacheTTL = defaultCacheTTL
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Scheduler.GenerateCron); err != nil {
		return fmt.Errorf("scheduler.generate_cron: %w", err)
	}
	if _, err := parser.Parse(c.Scheduler.ReminderCron); err != nil {
		return fmt.Errorf("scheduler.reminder_cron: %w", err)
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads path, creating it with defaults on first run, then applies
// .env and process environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from FLAG_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("FLAG_LISTEN", &c.Listen)
	str("FLAG_DB_PATH", &c.DBPath)
	str("FLAG_TIMEZONE", &c.Timezone)
	str("FLAG_LOG_LEVEL", &c.Log.Level)
	str("FLAG_SMTP_HOST", &c.SMTP.Host)
	str("FLAG_SMTP_USERNAME", &c.SMTP.Username)
	str("FLAG_SMTP_PASSWORD", &c.SMTP.Password)
	str("FLAG_SMTP_FROM", &c.SMTP.From)

	if v, ok := lookup("FLAG_SMTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FLAG_SMTP_PORT: %w", err)
		}
		c.SMTP.Port = port
	}
	return nil
}

// Save writes cfg atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".flags-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
