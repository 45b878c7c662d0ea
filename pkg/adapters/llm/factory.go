package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eenlars/lucky-sub006/pkg/adapters/llm/anthropic"
	"github.com/eenlars/lucky-sub006/pkg/ports"
)

// Config holds model client configuration
type Config struct {
	Provider         string
	APIKey           string
	RequestTimeout   time.Duration
	DefaultMaxTokens int
	Logger           *zap.Logger
}

// NewClient creates a new model client based on provider
func NewClient(cfg *Config) (ports.ModelClient, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewClient(cfg.APIKey, cfg.RequestTimeout, cfg.DefaultMaxTokens, cfg.Logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
