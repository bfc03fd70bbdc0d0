package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	LogFile  string
	HTTPPort string

	// Trading backend
	BackendURL     string
	BackendTimeout time.Duration
	DataAPIURL     string // positions lookup for percentage sells

	// Quoting
	QuoteDebounce    time.Duration
	QuoteCacheTTL    time.Duration
	MinQuoteNotional float64

	// Pricing and execution
	ExecutionMaxRetries int
	MinOrderValue       float64
	MarketBuyMaxPrice   float64
	MarketSellMinPrice  float64
	SlippageBuffer      float64

	// Wallet session
	WalletPrivateKey     string
	WalletProxyAddress   string
	PolymarketAPIKey     string
	PolymarketSecret     string
	PolymarketPassphrase string

	// Storage
	StorageMode  string // "console", "postgres" or "sqlite"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
	SQLitePath   string
}

// loader resolves keys from the environment first, then from the optional
// YAML file named by CONFIG_FILE.
type loader struct {
	file map[string]string
}

// LoadFromEnv loads configuration from environment variables with defaults.
// If CONFIG_FILE is set, its top-level keys act as defaults beneath the
// environment.
func LoadFromEnv() (*Config, error) {
	l := &loader{}

	path := os.Getenv("CONFIG_FILE")
	if path != "" {
		values, err := readConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		l.file = values
	}

	cfg := &Config{
		// Application defaults
		LogLevel: l.getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  l.getEnvOrDefault("LOG_FILE", ""),
		HTTPPort: l.getEnvOrDefault("HTTP_PORT", "8080"),

		// Backend defaults
		BackendURL:     l.getEnvOrDefault("BACKEND_URL", "http://localhost:8000"),
		BackendTimeout: l.getDurationOrDefault("BACKEND_TIMEOUT", 30*time.Second),
		DataAPIURL:     l.getEnvOrDefault("DATA_API_URL", "https://data-api.polymarket.com"),

		// Quoting defaults
		QuoteDebounce:    l.getDurationOrDefault("QUOTE_DEBOUNCE", 300*time.Millisecond),
		QuoteCacheTTL:    l.getDurationOrDefault("QUOTE_CACHE_TTL", 30*time.Second),
		MinQuoteNotional: l.getFloat64OrDefault("MIN_QUOTE_NOTIONAL", 1.0),

		// Execution defaults
		ExecutionMaxRetries: l.getIntOrDefault("EXECUTION_MAX_RETRIES", 2),
		MinOrderValue:       l.getFloat64OrDefault("MIN_ORDER_VALUE", 1.0),
		MarketBuyMaxPrice:   l.getFloat64OrDefault("MARKET_BUY_MAX_PRICE", 0.99),
		MarketSellMinPrice:  l.getFloat64OrDefault("MARKET_SELL_MIN_PRICE", 0.01),
		SlippageBuffer:      l.getFloat64OrDefault("SLIPPAGE_BUFFER", 1.01),

		// Wallet session
		WalletPrivateKey:     l.getEnvOrDefault("WALLET_PRIVATE_KEY", ""),
		WalletProxyAddress:   l.getEnvOrDefault("WALLET_PROXY_ADDRESS", ""),
		PolymarketAPIKey:     l.getEnvOrDefault("POLYMARKET_API_KEY", ""),
		PolymarketSecret:     l.getEnvOrDefault("POLYMARKET_SECRET", ""),
		PolymarketPassphrase: l.getEnvOrDefault("POLYMARKET_PASSPHRASE", ""),

		// Storage defaults
		StorageMode:  l.getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: l.getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: l.getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: l.getEnvOrDefault("POSTGRES_USER", "trader"),
		PostgresPass: l.getEnvOrDefault("POSTGRES_PASSWORD", ""),
		PostgresDB:   l.getEnvOrDefault("POSTGRES_DB", "trade_history"),
		PostgresSSL:  l.getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		SQLitePath:   l.getEnvOrDefault("SQLITE_PATH", "trade_history.db"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL cannot be empty")
	}

	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", c.BackendURL)
	}

	if c.QuoteDebounce <= 0 {
		return fmt.Errorf("QUOTE_DEBOUNCE must be positive, got %v", c.QuoteDebounce)
	}

	if c.QuoteCacheTTL < 0 {
		return fmt.Errorf("QUOTE_CACHE_TTL must be non-negative (0 = no expiry), got %v", c.QuoteCacheTTL)
	}

	if c.ExecutionMaxRetries < 0 {
		return fmt.Errorf("EXECUTION_MAX_RETRIES must be non-negative, got %d", c.ExecutionMaxRetries)
	}

	if c.MinOrderValue <= 0 {
		return fmt.Errorf("MIN_ORDER_VALUE must be positive, got %f", c.MinOrderValue)
	}

	if c.MinQuoteNotional < 0 {
		return fmt.Errorf("MIN_QUOTE_NOTIONAL must be non-negative, got %f", c.MinQuoteNotional)
	}

	if c.MarketBuyMaxPrice <= 0 || c.MarketBuyMaxPrice >= 1.0 {
		return fmt.Errorf("MARKET_BUY_MAX_PRICE must be between 0 and 1.0, got %f", c.MarketBuyMaxPrice)
	}

	if c.MarketSellMinPrice <= 0 || c.MarketSellMinPrice >= c.MarketBuyMaxPrice {
		return fmt.Errorf("MARKET_SELL_MIN_PRICE must be between 0 and MARKET_BUY_MAX_PRICE, got %f", c.MarketSellMinPrice)
	}

	if c.SlippageBuffer < 1.0 {
		return fmt.Errorf("SLIPPAGE_BUFFER must be >= 1.0, got %f", c.SlippageBuffer)
	}

	switch c.StorageMode {
	case "console", "postgres", "sqlite":
	default:
		return fmt.Errorf("STORAGE_MODE must be 'console', 'postgres' or 'sqlite', got %q", c.StorageMode)
	}

	return nil
}

func readConfigFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	err = yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		values[key] = fmt.Sprint(value)
	}

	return values, nil
}

func (l *loader) lookup(key string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return l.file[key]
}

func (l *loader) getEnvOrDefault(key string, defaultValue string) string {
	value := l.lookup(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func (l *loader) getIntOrDefault(key string, defaultValue int) int {
	value := l.lookup(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func (l *loader) getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := l.lookup(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func (l *loader) getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := l.lookup(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
