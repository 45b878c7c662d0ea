package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the workflow orchestrator.
type Config struct {
	// Server configuration
	HTTPPort int    `env:"LUCKY_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"LUCKY_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis configuration
	Redis RedisConfig

	// LLM configuration
	LLM LLMConfig

	// Runner pool configuration
	Runner RunnerConfig

	// Validation configuration
	Validation ValidationConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// LLMConfig holds model gateway configuration.
type LLMConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"anthropic"`
	APIKey   string `env:"LLM_API_KEY"`

	RequestTimeout time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"120s"`

	DefaultModel     string `env:"LLM_DEFAULT_MODEL" envDefault:"claude-3-5-haiku-latest"`
	DefaultMaxTokens int    `env:"LLM_DEFAULT_MAX_TOKENS" envDefault:"4096"`
}

// RunnerConfig holds runner pool configuration.
type RunnerConfig struct {
	PoolSize            int           `env:"RUNNER_POOL_SIZE" envDefault:"5"`
	HealthCheckInterval time.Duration `env:"RUNNER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// ValidationConfig holds the toggles for structural workflow checks.
type ValidationConfig struct {
	AllowCycles         bool     `env:"VALIDATION_ALLOW_CYCLES" envDefault:"false"`
	CoordinationMode    string   `env:"VALIDATION_COORDINATION_MODE" envDefault:"sequential"`
	MaxMCPToolsPerNode  int      `env:"VALIDATION_MAX_MCP_TOOLS" envDefault:"3"`
	MaxCodeToolsPerNode int      `env:"VALIDATION_MAX_CODE_TOOLS" envDefault:"3"`
	DefaultTools        []string `env:"VALIDATION_DEFAULT_TOOLS" envSeparator:","`
	UniqueTools         bool     `env:"VALIDATION_UNIQUE_TOOLS" envDefault:"true"`
	UniqueToolSets      bool     `env:"VALIDATION_UNIQUE_TOOL_SETS" envDefault:"true"`
	ToolLimits          bool     `env:"VALIDATION_TOOL_LIMITS" envDefault:"true"`
	ActiveTools         bool     `env:"VALIDATION_ACTIVE_TOOLS" envDefault:"true"`
	Models              bool     `env:"VALIDATION_MODELS" envDefault:"true"`
}

// TimeoutConfig holds various timeout configurations.
type TimeoutConfig struct {
	InvocationTimeout time.Duration `env:"TIMEOUT_INVOCATION" envDefault:"3600s"`
	// InvocationStateTTL bounds how long abandoned shared cancellation
	// records survive in Redis.
	InvocationStateTTL time.Duration `env:"TIMEOUT_INVOCATION_STATE_TTL" envDefault:"24h"`
	ShutdownTimeout    time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required")
	}
	if c.LLM.Provider != "anthropic" {
		return fmt.Errorf("unsupported LLM provider: %s (only 'anthropic' is supported)", c.LLM.Provider)
	}

	if c.Runner.PoolSize < 1 {
		return fmt.Errorf("runner pool size must be at least 1")
	}

	switch c.Validation.CoordinationMode {
	case "sequential", "hierarchical":
	default:
		return fmt.Errorf("invalid coordination mode: %s (must be sequential or hierarchical)", c.Validation.CoordinationMode)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address.
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
