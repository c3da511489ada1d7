package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"sentiment-observer/src/helpers"
	"sentiment-observer/src/models"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "OBSERVER_"

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig builds the configuration from an optional YAML file, a .env file and the environment.
func NewConfig(configPath string) (*Config, error) {
	var modelConfig models.MConfig

	// 1. YAML base layer
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &modelConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
		}
	}

	// 2. Environment overrides (.env is optional)
	_ = godotenv.Load()
	if err := env.ParseWithOptions(&modelConfig, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()
	config.mergeKeywordOverrides()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, helpers.NewConfigurationError(err, "config validation failed")
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "sentiment-observer"
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8090
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.GrpcHost == "" {
		c.GrpcHost = c.Host
	}

	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		c.Storage.DBPath = "observer.db"
	}
	if c.Storage.Schema == "" {
		c.Storage.Schema = strings.ReplaceAll(c.Name, "-", "_")
	}
	if c.Storage.OperationTimeoutSecs == 0 {
		c.Storage.OperationTimeoutSecs = 5
	}

	if c.Feed.URL == "" {
		c.Feed.URL = "wss://ws-feed.exchange.coinbase.com"
	}
	if c.Feed.Channel == "" {
		c.Feed.Channel = "ticker"
	}
	if c.Feed.Symbols == nil {
		c.Feed.Symbols = []string{"BTC-USD", "ETH-USD", "USDT-USD"}
	}
	if c.Feed.ReconnectDelaySeconds == 0 {
		c.Feed.ReconnectDelaySeconds = 2
	}
	if c.Feed.RestartDelaySeconds == 0 {
		c.Feed.RestartDelaySeconds = 1
	}
	if c.Feed.HeartbeatIntervalSecs == 0 {
		c.Feed.HeartbeatIntervalSecs = 20
	}
	if c.Feed.HeartbeatTimeoutSecs == 0 {
		c.Feed.HeartbeatTimeoutSecs = 10
	}
	if c.Feed.HandshakeTimeoutSeconds == 0 {
		c.Feed.HandshakeTimeoutSeconds = 10
	}

	if c.Aggregation.PeriodSeconds == 0 {
		c.Aggregation.PeriodSeconds = 30
	}
	if c.Aggregation.TrailingBuckets == 0 {
		c.Aggregation.TrailingBuckets = 6
	}
	if c.Aggregation.FallbackMinutes == nil {
		fallback := 5
		c.Aggregation.FallbackMinutes = &fallback
	}
	if c.Aggregation.SymbolKeywords == nil {
		c.Aggregation.SymbolKeywords = map[string][]string{
			"BTC-USD": {"btc", "bitcoin", "sats", "btcusd"},
			"ETH-USD": {"eth", "ethereum", "ether", "ethusd"},
		}
	}
}

// -----------------------------------------------------------------------------

// mergeKeywordOverrides folds OBSERVER_AGGREGATION_SYMBOL_KEYWORDS into the YAML keyword map.
func (c *Config) mergeKeywordOverrides() {
	for symbol, raw := range c.Aggregation.SymbolKeywordsEnv {
		var keywords []string
		for _, kw := range strings.Split(raw, "|") {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		c.Aggregation.SymbolKeywords[strings.TrimSpace(symbol)] = keywords
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %q", c.Storage.DBType)
	}
	if c.Storage.OperationTimeoutSecs < 0 {
		return fmt.Errorf("storage operation timeout cannot be negative")
	}

	// Feed
	if c.Feed.URL == "" {
		return fmt.Errorf("feed url cannot be empty")
	}
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("at least one symbol must be configured")
	}
	seen := make(map[string]bool, len(c.Feed.Symbols))
	for i, sym := range c.Feed.Symbols {
		if sym == "" {
			return fmt.Errorf("symbol %d cannot be empty", i)
		}
		if seen[sym] {
			return fmt.Errorf("symbol %s configured twice", sym)
		}
		seen[sym] = true
	}
	if c.Feed.ReconnectDelaySeconds < 0 || c.Feed.RestartDelaySeconds < 0 {
		return fmt.Errorf("reconnect and restart delays cannot be negative")
	}
	if c.Feed.HeartbeatIntervalSecs <= 0 || c.Feed.HeartbeatTimeoutSecs <= 0 {
		return fmt.Errorf("heartbeat interval and timeout must be greater than 0")
	}

	// Aggregation
	if c.Aggregation.PeriodSeconds <= 0 {
		return fmt.Errorf("aggregation period must be greater than 0")
	}
	if c.Aggregation.TrailingBuckets <= 0 {
		return fmt.Errorf("trailing buckets must be greater than 0")
	}
	if c.Aggregation.FallbackMinutes != nil && *c.Aggregation.FallbackMinutes < 0 {
		return fmt.Errorf("fallback minutes cannot be negative")
	}
	if c.Aggregation.SettleDelaySeconds < 0 {
		return fmt.Errorf("settle delay cannot be negative")
	}

	return nil
}

// -----------------------------------------------------------------------------
// Duration accessors
// -----------------------------------------------------------------------------

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func (c *Config) ReconnectDelay() time.Duration    { return seconds(c.Feed.ReconnectDelaySeconds) }
func (c *Config) RestartDelay() time.Duration      { return seconds(c.Feed.RestartDelaySeconds) }
func (c *Config) HeartbeatInterval() time.Duration { return seconds(c.Feed.HeartbeatIntervalSecs) }
func (c *Config) HeartbeatTimeout() time.Duration  { return seconds(c.Feed.HeartbeatTimeoutSecs) }
func (c *Config) HandshakeTimeout() time.Duration  { return seconds(c.Feed.HandshakeTimeoutSeconds) }
func (c *Config) AggregationPeriod() time.Duration { return seconds(c.Aggregation.PeriodSeconds) }
func (c *Config) SettleDelay() time.Duration       { return seconds(c.Aggregation.SettleDelaySeconds) }

func (c *Config) FallbackWindow() time.Duration {
	if c.Aggregation.FallbackMinutes == nil {
		return 0
	}
	return time.Duration(*c.Aggregation.FallbackMinutes) * time.Minute
}

func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.Storage.OperationTimeoutSecs) * time.Second
}
