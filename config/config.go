package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	MarketData   MarketDataConfig   `yaml:"market_data"`
	Refresh      RefreshConfig      `yaml:"refresh"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	MarketStatus MarketStatusConfig `yaml:"market_status"`
	LogLevel     string             `yaml:"log_level"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	Environment  string        `yaml:"environment"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type MarketDataConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	ProfileTimeout time.Duration `yaml:"profile_timeout"`
	DataTimeout    time.Duration `yaml:"data_timeout"`
	RetryCount     int           `yaml:"retry_count"`
}

type RefreshConfig struct {
	Interval          time.Duration `yaml:"interval"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	SymbolDelay       time.Duration `yaml:"symbol_delay"`
	ProfileEvery      int           `yaml:"profile_every"`
	PriceLookback     time.Duration `yaml:"price_lookback"`
	IndicatorLookback time.Duration `yaml:"indicator_lookback"`
	BlockStartup      bool          `yaml:"block_startup"`
}

type HousekeepingConfig struct {
	Cron     string `yaml:"cron"`
	KeepRuns int    `yaml:"keep_runs"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type MarketStatusConfig struct {
	BISTTimezone string `yaml:"bist_timezone"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "5000",
			Environment:  "development",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 90 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  DriverSQLite,
			Path:    "data/stocks.db",
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "stocks",
			SSLMode: "disable",
		},
		MarketData: MarketDataConfig{
			BaseURL:        "https://finnhub.io/api/v1",
			ProfileTimeout: 10 * time.Second,
			DataTimeout:    15 * time.Second,
		},
		Refresh: RefreshConfig{
			Interval:          time.Hour,
			RetryDelay:        60 * time.Second,
			SymbolDelay:       1200 * time.Millisecond,
			ProfileEvery:      5,
			PriceLookback:     5 * 365 * 24 * time.Hour,
			IndicatorLookback: 365 * 24 * time.Hour,
			BlockStartup:      true,
		},
		Housekeeping: HousekeepingConfig{
			Cron:     "0 30 3 * * *",
			KeepRuns: 200,
		},
		RateLimit: RateLimitConfig{
			Requests: 30,
			Window:   time.Minute,
		},
		MarketStatus: MarketStatusConfig{
			BISTTimezone: "Europe/Istanbul",
		},
		LogLevel: "info",
	}
}

// Load reads .env, then the optional YAML file at path, then environment overrides
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Environment = getEnv("ENVIRONMENT", c.Server.Environment)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.MarketData.BaseURL = getEnv("FINNHUB_BASE_URL", c.MarketData.BaseURL)
	c.MarketData.APIKey = getEnv("FINNHUB_API_KEY", c.MarketData.APIKey)

	c.Refresh.Interval = getEnvDuration("REFRESH_INTERVAL", c.Refresh.Interval)
	c.Refresh.SymbolDelay = getEnvDuration("REFRESH_SYMBOL_DELAY", c.Refresh.SymbolDelay)
	c.Refresh.BlockStartup = getEnvBool("REFRESH_BLOCK_STARTUP", c.Refresh.BlockStartup)

	c.Housekeeping.Cron = getEnv("HOUSEKEEPING_CRON", c.Housekeeping.Cron)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate checks that the loaded values are usable
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.MarketData.BaseURL == "" {
		return fmt.Errorf("market_data.base_url is required")
	}
	if c.Refresh.Interval <= 0 || c.Refresh.RetryDelay <= 0 {
		return fmt.Errorf("refresh.interval and refresh.retry_delay must be positive")
	}
	if c.Refresh.SymbolDelay < 0 {
		return fmt.Errorf("refresh.symbol_delay must not be negative")
	}
	if c.Refresh.ProfileEvery <= 0 {
		return fmt.Errorf("refresh.profile_every must be positive")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.requests and rate_limit.window must be positive")
	}
	if c.Housekeeping.KeepRuns <= 0 {
		return fmt.Errorf("housekeeping.keep_runs must be positive")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Housekeeping.Cron); err != nil {
		return fmt.Errorf("housekeeping.cron: %w", err)
	}
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// PostgresDSN builds the postgres connection string
func (d DatabaseConfig) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host,
		d.User,
		d.Password,
		d.Name,
		d.Port,
		d.SSLMode,
	)
}

// MaskHost masks host for logging, preserving domain structure
func MaskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Warning: invalid duration for %s: %q", key, v)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
