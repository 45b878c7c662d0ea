package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/eenlars/lucky-sub006/pkg/ports"
)

const defaultMaxTokens = 4096

// Pricing per million tokens, used to estimate call cost from usage.
// Models missing from the table fall back to the haiku rates.
var pricing = map[string]struct{ input, output float64 }{
	"claude-3-5-haiku-latest":  {0.80, 4.00},
	"claude-sonnet-4-20250514": {3.00, 15.00},
	"claude-opus-4-20250514":   {15.00, 75.00},
}

// Client implements ports.ModelClient using the Anthropic Messages API.
type Client struct {
	client         anthropic.Client
	logger         *zap.Logger
	requestTimeout time.Duration
	maxTokens      int
}

// NewClient creates a new Anthropic model client.
func NewClient(apiKey string, requestTimeout time.Duration, maxTokens int, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		logger:         logger,
		requestTimeout: requestTimeout,
		maxTokens:      maxTokens,
	}, nil
}

// Complete sends one message exchange to the model (ports.ModelClient
// interface). The request context carries the abort signal; a call
// already accepted by the API runs to completion on the server side.
func (c *Client) Complete(ctx context.Context, req ports.ModelRequest) (*ports.ModelResponse, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Input)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}

	start := time.Now()
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	cost := estimateCost(req.Model, message.Usage.InputTokens, message.Usage.OutputTokens)

	c.logger.Debug("model call completed",
		zap.String("model", req.Model),
		zap.Int64("input_tokens", message.Usage.InputTokens),
		zap.Int64("output_tokens", message.Usage.OutputTokens),
		zap.Float64("cost_usd", cost),
		zap.Duration("duration", time.Since(start)))

	return &ports.ModelResponse{
		Output: sb.String(),
		Cost:   cost,
		Model:  req.Model,
	}, nil
}

// estimateCost converts token usage into US dollars.
func estimateCost(model string, inputTokens, outputTokens int64) float64 {
	rates, ok := pricing[model]
	if !ok {
		rates = pricing["claude-3-5-haiku-latest"]
	}
	return float64(inputTokens)/1e6*rates.input + float64(outputTokens)/1e6*rates.output
}
