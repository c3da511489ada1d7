package models

// MConfig Structure
// YAML is the base layer; every field can be overridden from the environment (prefix OBSERVER_).
type MConfig struct {
	Name        string             `yaml:"name" env:"NAME"`
	Host        string             `yaml:"host" env:"HOST"`
	Port        int                `yaml:"port" env:"PORT"`
	LogLevel    string             `yaml:"log_level" env:"LOG_LEVEL"`
	GrpcHost    string             `yaml:"grpc_host" env:"GRPC_HOST"`
	GrpcPort    int                `yaml:"grpc_port" env:"GRPC_PORT"`
	Storage     MStorageConfig     `yaml:"storage" envPrefix:"STORAGE_"`
	Feed        MFeedConfig        `yaml:"feed" envPrefix:"FEED_"`
	Aggregation MAggregationConfig `yaml:"aggregation" envPrefix:"AGGREGATION_"`
}

type MStorageConfig struct {
	DBType               string `yaml:"db_type" env:"DB_TYPE"`
	DBPath               string `yaml:"db_path" env:"DB_PATH"`
	DBConnectionString   string `yaml:"db_connection_string" env:"DB_CONNECTION_STRING"`
	Schema               string `yaml:"schema" env:"SCHEMA"` // Postgres only
	OperationTimeoutSecs int    `yaml:"operation_timeout_seconds" env:"OPERATION_TIMEOUT_SECONDS"`
}

type MFeedConfig struct {
	URL                     string   `yaml:"url" env:"URL"`
	Channel                 string   `yaml:"channel" env:"CHANNEL"`
	Symbols                 []string `yaml:"symbols" env:"SYMBOLS" envSeparator:","`
	ReconnectDelaySeconds   float64  `yaml:"reconnect_delay_seconds" env:"RECONNECT_DELAY_SECONDS"`
	RestartDelaySeconds     float64  `yaml:"restart_delay_seconds" env:"RESTART_DELAY_SECONDS"`
	HeartbeatIntervalSecs   float64  `yaml:"heartbeat_interval_seconds" env:"HEARTBEAT_INTERVAL_SECONDS"`
	HeartbeatTimeoutSecs    float64  `yaml:"heartbeat_timeout_seconds" env:"HEARTBEAT_TIMEOUT_SECONDS"`
	HandshakeTimeoutSeconds float64  `yaml:"handshake_timeout_seconds" env:"HANDSHAKE_TIMEOUT_SECONDS"`
	Proxy                   string   `yaml:"proxy" env:"PROXY"` // Optional
}

type MAggregationConfig struct {
	PeriodSeconds      float64             `yaml:"period_seconds" env:"PERIOD_SECONDS"`
	TrailingBuckets    int                 `yaml:"trailing_buckets" env:"TRAILING_BUCKETS"`
	SettleDelaySeconds float64             `yaml:"settle_delay_seconds" env:"SETTLE_DELAY_SECONDS"`
	FallbackMinutes    *int                `yaml:"fallback_minutes" env:"FALLBACK_MINUTES"` // 0 disables the fallback window
	SymbolKeywords     map[string][]string `yaml:"symbol_keywords"`
	// "BTC-USD=btc|bitcoin;ETH-USD=eth|ether", merged over SymbolKeywords
	SymbolKeywordsEnv map[string]string `yaml:"-" env:"SYMBOL_KEYWORDS" envSeparator:";" envKeyValSeparator:"="`
}
