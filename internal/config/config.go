package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Common
	Environment string
	LogLevel    string

	Server  ServerConfig
	Binance BinanceConfig
	Engine  EngineConfig
	Cache   CacheConfig
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Port            int
	HealthCheckPort int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RateLimitRPS    int
	JWTSecret       string
	AuthEnabled     bool
}

// BinanceConfig holds market data source configuration
type BinanceConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	RetryCount     int
	Symbols        []string
}

// EngineConfig holds analytics engine configuration
type EngineConfig struct {
	VolatilityWindow int
	MAShortWindow    int
	MALongWindow     int
	RSIPeriod        int
	BenchmarkSymbol  string
	DefaultSymbol    string
	OrderBookDepth   int
}

// CacheConfig holds the optional Redis metric-row cache configuration
type CacheConfig struct {
	Enabled      bool
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	TTL          time.Duration
}

// Load loads configuration from environment variables
// It automatically loads .env file if it exists in the current directory or parent directories
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			HealthCheckPort: getEnvAsInt("SERVER_HEALTH_PORT", 8081),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RateLimitRPS:    getEnvAsInt("SERVER_RATE_LIMIT_RPS", 50),
			JWTSecret:       getEnv("SERVER_JWT_SECRET", ""),
			AuthEnabled:     getEnvAsBool("SERVER_AUTH_ENABLED", false),
		},
		Binance: BinanceConfig{
			BaseURL:        getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
			RequestTimeout: getEnvAsDuration("BINANCE_REQUEST_TIMEOUT", 10*time.Second),
			RetryCount:     getEnvAsInt("BINANCE_RETRY_COUNT", 0),
			Symbols:        getEnvAsStringSlice("BINANCE_SYMBOLS", []string{"BTCUSDT", "ETHUSDT", "BNBUSDT"}),
		},
		Engine: EngineConfig{
			VolatilityWindow: getEnvAsInt("ENGINE_VOLATILITY_WINDOW", 5),
			MAShortWindow:    getEnvAsInt("ENGINE_MA_SHORT_WINDOW", 5),
			MALongWindow:     getEnvAsInt("ENGINE_MA_LONG_WINDOW", 10),
			RSIPeriod:        getEnvAsInt("ENGINE_RSI_PERIOD", 14),
			BenchmarkSymbol:  getEnv("ENGINE_BENCHMARK_SYMBOL", "BTCUSDT"),
			DefaultSymbol:    getEnv("ENGINE_DEFAULT_SYMBOL", "BTCUSDT"),
			OrderBookDepth:   getEnvAsInt("ENGINE_ORDER_BOOK_DEPTH", 100),
		},
		Cache: CacheConfig{
			Enabled:      getEnvAsBool("CACHE_ENABLED", false),
			Host:         getEnv("CACHE_REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("CACHE_REDIS_PORT", 6379),
			Password:     getEnv("CACHE_REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("CACHE_REDIS_DB", 0),
			PoolSize:     getEnvAsInt("CACHE_REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("CACHE_REDIS_MIN_IDLE_CONNS", 5),
			TTL:          getEnvAsDuration("CACHE_TTL", 15*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Binance.BaseURL == "" {
		return fmt.Errorf("binance base URL must not be empty")
	}
	if c.Engine.VolatilityWindow < 2 {
		return fmt.Errorf("volatility window must be at least 2, got %d", c.Engine.VolatilityWindow)
	}
	if c.Engine.MAShortWindow < 1 || c.Engine.MALongWindow < c.Engine.MAShortWindow {
		return fmt.Errorf("invalid moving average windows: %d/%d", c.Engine.MAShortWindow, c.Engine.MALongWindow)
	}
	if c.Engine.RSIPeriod < 2 {
		return fmt.Errorf("RSI period must be at least 2, got %d", c.Engine.RSIPeriod)
	}
	if c.Server.AuthEnabled && c.Server.JWTSecret == "" {
		return fmt.Errorf("SERVER_JWT_SECRET must be set when auth is enabled")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsStringSlice gets an environment variable as a comma-separated string slice
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
