package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "RISK_MONITOR_CONFIG"
	databaseDrvEnv  = "DATABASE_DRIVER"
	databaseDSNEnv  = "DATABASE_DSN"
	httpAddrEnv     = "HTTP_ADDR"
	logLevelEnv     = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Status    StatusConfig    `yaml:"status"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// LoggingConfig selects slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes the record store connection.
type DatabaseConfig struct {
	Driver       string        `yaml:"driver"`
	DSN          string        `yaml:"dsn"`
	QueryTimeout time.Duration `yaml:"queryTimeout"`
	Migrate      bool          `yaml:"migrate"`
	// SeedFile preloads collector output into the memory driver.
	SeedFile string `yaml:"seedFile"`
}

// DashboardConfig shapes record queries.
type DashboardConfig struct {
	ResultLimit int            `yaml:"resultLimit"`
	Timezone    string         `yaml:"timezone"`
	location    *time.Location `yaml:"-"`
}

// Location resolves the dashboard timezone string to a time.Location.
func (d DashboardConfig) Location() *time.Location {
	if d.location != nil {
		return d.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// StatusConfig controls backend status polling and command coalescing.
type StatusConfig struct {
	PollInterval    time.Duration `yaml:"pollInterval"`
	CommandCooldown time.Duration `yaml:"commandCooldown"`
}

// HTTPConfig configures the dashboard server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	FetchWait       time.Duration `yaml:"fetchWait"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg, err := Parse(raw)
			if err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Parse decodes a YAML document without applying defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDrvEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Dashboard.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Dashboard.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.QueryTimeout > 0 {
		base.Database.QueryTimeout = override.Database.QueryTimeout
	}
	if override.Database.Migrate {
		base.Database.Migrate = true
	}
	if override.Database.SeedFile != "" {
		base.Database.SeedFile = override.Database.SeedFile
	}

	if override.Dashboard.ResultLimit > 0 {
		base.Dashboard.ResultLimit = override.Dashboard.ResultLimit
	}
	if override.Dashboard.Timezone != "" {
		base.Dashboard.Timezone = override.Dashboard.Timezone
	}

	if override.Status.PollInterval > 0 {
		base.Status.PollInterval = override.Status.PollInterval
	}
	if override.Status.CommandCooldown > 0 {
		base.Status.CommandCooldown = override.Status.CommandCooldown
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}
	if override.HTTP.FetchWait > 0 {
		base.HTTP.FetchWait = override.HTTP.FetchWait
	}
	if override.HTTP.ShutdownTimeout > 0 {
		base.HTTP.ShutdownTimeout = override.HTTP.ShutdownTimeout
	}

	return base
}

// Default returns the built-in configuration with the timezone bound.
func Default() Config {
	cfg := defaultConfig()
	cfg.bindTimezone()
	return cfg
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{
			Driver:       "memory",
			QueryTimeout: 10 * time.Second,
		},
		Dashboard: DashboardConfig{ResultLimit: 50, Timezone: defaultTimezone, location: tz},
		Status: StatusConfig{
			PollInterval:    3 * time.Second,
			CommandCooldown: 2 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			FetchWait:       2 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}
