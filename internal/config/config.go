package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Relay    RelayConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type BrowserConfig struct {
	Headless          bool
	NavigationTimeout time.Duration
	Settle            time.Duration
	SelectorTimeout   time.Duration
	UserAgent         string
	ProxyServer       string
	MaxSessions       int
}

// ScraperConfig intervals space out page loads on the same platform; zero
// disables pacing.
type ScraperConfig struct {
	Mode        string
	RulesFile   string
	MinInterval time.Duration
	MaxInterval time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads the environment, after applying a .env file when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 8000),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Browser: BrowserConfig{
			Headless:          getEnvBool("BROWSER_HEADLESS", true),
			NavigationTimeout: getEnvDuration("BROWSER_NAVIGATION_TIMEOUT", 30*time.Second),
			Settle:            getEnvDuration("BROWSER_SETTLE", 3*time.Second),
			SelectorTimeout:   getEnvDuration("BROWSER_SELECTOR_TIMEOUT", 2*time.Second),
			UserAgent:         getEnv("BROWSER_USER_AGENT", ""),
			ProxyServer:       getEnv("BROWSER_PROXY", ""),
			MaxSessions:       getEnvInt("BROWSER_MAX_SESSIONS", 4),
		},
		Scraper: ScraperConfig{
			Mode:        strings.ToLower(getEnv("SCRAPER_MODE", "live")),
			RulesFile:   getEnv("RULES_FILE", ""),
			MinInterval: getEnvDuration("SCRAPER_MIN_INTERVAL", 0),
			MaxInterval: getEnvDuration("SCRAPER_MAX_INTERVAL", 0),
		},
		Cache: CacheConfig{
			TTL: getEnvDuration("CACHE_TTL", time.Hour),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "pricehawk"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Relay: RelayConfig{
			PollInterval: getEnvDuration("RELAY_POLL_INTERVAL", 5*time.Second),
			BatchSize:    getEnvInt("RELAY_BATCH_SIZE", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Scraper.Mode != "live" && c.Scraper.Mode != "mock" {
		return fmt.Errorf("SCRAPER_MODE must be live or mock, got %q", c.Scraper.Mode)
	}
	if c.Scraper.MinInterval < 0 || c.Scraper.MaxInterval < c.Scraper.MinInterval {
		return fmt.Errorf("SCRAPER_MIN_INTERVAL must be >= 0 and <= SCRAPER_MAX_INTERVAL")
	}
	if c.Browser.MaxSessions < 1 {
		return fmt.Errorf("BROWSER_MAX_SESSIONS must be at least 1")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("BROWSER_NAVIGATION_TIMEOUT must be positive")
	}
	if c.Browser.Settle < 0 {
		return fmt.Errorf("BROWSER_SETTLE must not be negative")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when redis is enabled")
	}
	if c.Database.Enabled {
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required when the database is enabled")
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("DB_MAX_CONNS must be at least 1")
		}
	}
	if c.Relay.BatchSize < 1 {
		return fmt.Errorf("RELAY_BATCH_SIZE must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
