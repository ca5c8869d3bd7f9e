package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"
)

// DefaultApprovalTTL is how long an approval request stays open when the wallet sets no override
const DefaultApprovalTTL = 48 * time.Hour

// Config holds service configuration
type Config struct {
	// Database
	PostgresDSN      string
	StorageBackend   string
	PostgresMaxConns int
	PostgresMinConns int

	// Server
	Port int

	// Caller identity. With JWTSecret set, callers present HS256 bearer tokens whose
	// subject is their user ID; otherwise the X-User-ID header from the gateway is trusted.
	JWTSecret string
	JWTIssuer string

	// Approval lifecycle
	ApprovalTTL         time.Duration
	ExpirySweepSchedule string

	// Chain RPC endpoints. Chains without an endpoint use a dry-run broadcaster.
	EthereumRPCURL string
	PolygonRPCURL  string
	BSCRPCURL      string
	BitcoinRPCHost string
	BitcoinRPCUser string
	BitcoinRPCPass string
	BitcoinRPCTLS  bool
	BitcoinNetwork string

	// Lifecycle events
	KafkaBrokers []string
	KafkaTopic   string

	// Rate limiting
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int
}

// Load loads configuration from a .env file, if present, and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		PostgresDSN:         getEnv("POSTGRES_DSN", ""),
		StorageBackend:      getEnv("STORAGE_BACKEND", StorageBackendPostgres),
		PostgresMaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 25),
		PostgresMinConns:    getEnvInt("POSTGRES_MIN_CONNS", 5),
		Port:                getEnvInt("PORT", 8080),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTIssuer:           getEnv("JWT_ISSUER", ""),
		ApprovalTTL:         getEnvDuration("APPROVAL_TTL", DefaultApprovalTTL),
		ExpirySweepSchedule: getEnv("EXPIRY_SWEEP_SCHEDULE", "@every 1m"),
		EthereumRPCURL:      getEnv("ETH_RPC_URL", ""),
		PolygonRPCURL:       getEnv("POLYGON_RPC_URL", ""),
		BSCRPCURL:           getEnv("BSC_RPC_URL", ""),
		BitcoinRPCHost:      getEnv("BTC_RPC_HOST", ""),
		BitcoinRPCUser:      getEnv("BTC_RPC_USER", ""),
		BitcoinRPCPass:      getEnv("BTC_RPC_PASS", ""),
		BitcoinRPCTLS:       getEnvBool("BTC_RPC_TLS", false),
		BitcoinNetwork:      getEnv("BTC_NETWORK", "mainnet"),
		KafkaBrokers:        getEnvList("KAFKA_BROKERS"),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "multisig.approvals"),
		RateLimitEnabled:    getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRPS:        getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:      getEnvInt("RATE_LIMIT_BURST", 40),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageBackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORAGE_BACKEND is 'postgres'")
		}
		if c.PostgresMaxConns <= 0 || c.PostgresMinConns < 0 || c.PostgresMinConns > c.PostgresMaxConns {
			return fmt.Errorf("POSTGRES_MIN_CONNS must be between 0 and POSTGRES_MAX_CONNS (%d)", c.PostgresMaxConns)
		}
	case StorageBackendMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be 'postgres' or 'memory', got: %s", c.StorageBackend)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port)
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}

	if c.ApprovalTTL <= 0 {
		return fmt.Errorf("APPROVAL_TTL must be positive, got: %s", c.ApprovalTTL)
	}

	switch c.BitcoinNetwork {
	case "mainnet", "testnet", "testnet3", "regtest", "signet":
	default:
		return fmt.Errorf("BTC_NETWORK must be mainnet, testnet, regtest, or signet, got: %s", c.BitcoinNetwork)
	}

	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	valueStr = strings.ToLower(valueStr)
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}

// getEnvDuration accepts Go durations ("36h") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
