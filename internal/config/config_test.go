package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		PostgresDSN:      "postgres://localhost:5432/test",
		StorageBackend:   StorageBackendPostgres,
		PostgresMaxConns: 25,
		PostgresMinConns: 5,
		Port:             8080,
		ApprovalTTL:      DefaultApprovalTTL,
		BitcoinNetwork:   "mainnet",
		KafkaTopic:       "multisig.approvals",
		RateLimitRPS:     20,
		RateLimitBurst:   40,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid postgres config",
			mutate: func(c *Config) {},
		},
		{
			name: "memory backend needs no DSN",
			mutate: func(c *Config) {
				c.StorageBackend = StorageBackendMemory
				c.PostgresDSN = ""
			},
		},
		{
			name:    "postgres backend requires DSN",
			mutate:  func(c *Config) { c.PostgresDSN = "" },
			wantErr: true,
			errMsg:  "POSTGRES_DSN is required",
		},
		{
			name:    "min conns above max",
			mutate:  func(c *Config) { c.PostgresMinConns = 30 },
			wantErr: true,
			errMsg:  "POSTGRES_MIN_CONNS must be between",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(c *Config) { c.StorageBackend = "sqlite" },
			wantErr: true,
			errMsg:  "STORAGE_BACKEND must be",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: true,
			errMsg:  "PORT must be between",
		},
		{
			name:    "short JWT secret",
			mutate:  func(c *Config) { c.JWTSecret = "too-short" },
			wantErr: true,
			errMsg:  "JWT_SECRET must be at least 32 bytes",
		},
		{
			name:    "non-positive approval TTL",
			mutate:  func(c *Config) { c.ApprovalTTL = 0 },
			wantErr: true,
			errMsg:  "APPROVAL_TTL must be positive",
		},
		{
			name:    "unknown bitcoin network",
			mutate:  func(c *Config) { c.BitcoinNetwork = "litecoin" },
			wantErr: true,
			errMsg:  "BTC_NETWORK must be",
		},
		{
			name: "kafka brokers without topic",
			mutate: func(c *Config) {
				c.KafkaBrokers = []string{"localhost:9092"}
				c.KafkaTopic = ""
			},
			wantErr: true,
			errMsg:  "KAFKA_TOPIC is required",
		},
		{
			name: "rate limiting with zero burst",
			mutate: func(c *Config) {
				c.RateLimitEnabled = true
				c.RateLimitBurst = 0
			},
			wantErr: true,
			errMsg:  "RATE_LIMIT_RPS and RATE_LIMIT_BURST",
		},
		{
			name: "zero burst ignored when rate limiting disabled",
			mutate: func(c *Config) {
				c.RateLimitEnabled = false
				c.RateLimitBurst = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"POSTGRES_DSN", "STORAGE_BACKEND", "POSTGRES_MAX_CONNS", "POSTGRES_MIN_CONNS", "PORT", "JWT_SECRET", "JWT_ISSUER", "APPROVAL_TTL", "EXPIRY_SWEEP_SCHEDULE",
		"ETH_RPC_URL", "POLYGON_RPC_URL", "BSC_RPC_URL",
		"BTC_RPC_HOST", "BTC_RPC_USER", "BTC_RPC_PASS", "BTC_RPC_TLS", "BTC_NETWORK",
		"KAFKA_BROKERS", "KAFKA_TOPIC",
		"RATE_LIMIT_ENABLED", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/test")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, StorageBackendPostgres, cfg.StorageBackend)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, 25, cfg.PostgresMaxConns)
		assert.Equal(t, 48*time.Hour, cfg.ApprovalTTL)
		assert.Equal(t, "@every 1m", cfg.ExpirySweepSchedule)
		assert.Equal(t, "mainnet", cfg.BitcoinNetwork)
		assert.Empty(t, cfg.KafkaBrokers)
		assert.True(t, cfg.RateLimitEnabled)
	})

	t.Run("overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORAGE_BACKEND", "memory")
		t.Setenv("PORT", "9090")
		t.Setenv("APPROVAL_TTL", "2h")
		t.Setenv("BTC_NETWORK", "regtest")
		t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
		t.Setenv("RATE_LIMIT_ENABLED", "false")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, StorageBackendMemory, cfg.StorageBackend)
		assert.Equal(t, 9090, cfg.Port)
		assert.Equal(t, 2*time.Hour, cfg.ApprovalTTL)
		assert.Equal(t, "regtest", cfg.BitcoinNetwork)
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
		assert.False(t, cfg.RateLimitEnabled)
	})

	t.Run("missing DSN", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "POSTGRES_DSN is required")
	})
}

func TestGetEnvDuration(t *testing.T) {
	const key = "TEST_DURATION_VAR"

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Minute},
		{"90m", 90 * time.Minute},
		{"3600", time.Hour},
		{"soon", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(key, tt.value)
			assert.Equal(t, tt.want, getEnvDuration(key, time.Minute))
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	const key = "TEST_INT_VAR"

	t.Setenv(key, "42")
	assert.Equal(t, 42, getEnvInt(key, 7))

	t.Setenv(key, "not-a-number")
	assert.Equal(t, 7, getEnvInt(key, 7))
}

func TestGetEnvBool(t *testing.T) {
	const key = "TEST_BOOL_VAR"

	for _, v := range []string{"true", "TRUE", "1", "yes"} {
		t.Setenv(key, v)
		assert.True(t, getEnvBool(key, false), v)
	}

	t.Setenv(key, "off")
	assert.False(t, getEnvBool(key, true))
}
