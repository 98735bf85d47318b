// Package oracle is the boundary to the external completion service. The
// rest of the system consumes it through the narrow Client contract and never
// sees provider-specific wire shapes.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Request is a single completion request. Temperature stays low for
// structured extraction and higher for conversational replies; MaxTokens is a
// hard ceiling per call.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Response carries the raw completion text.
type Response struct {
	Text string
}

// Client is a chat-style completion backend. Implementations make exactly one
// outbound call per invocation and never retry on their own.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Config controls client construction.
type Config struct {
	// Enabled false forces the mock backend regardless of Mode.
	Enabled      bool
	Mode         string
	GeminiAPIKey string
	GeminiModel  string
	HTTPURL      string
	HTTPModel    string
	Timeout      time.Duration
	MaxTokens    int
}

// New constructs a completion client by explicit mode. Mode "auto" prefers
// Gemini when a key is configured, then a generic HTTP endpoint, then mock.
func New(cfg Config) (Client, error) {
	if !cfg.Enabled {
		return NewMockClient(), nil
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
			return NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Timeout)
		}
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPClient(cfg.HTTPURL, cfg.HTTPModel, cfg.Timeout), nil
		}
		return NewMockClient(), nil
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, errors.New("gemini api key is required for gemini mode")
		}
		return NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Timeout)
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("oracle HTTP url is required for http mode")
		}
		return NewHTTPClient(cfg.HTTPURL, cfg.HTTPModel, cfg.Timeout), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported oracle mode %q", cfg.Mode)
	}
}
