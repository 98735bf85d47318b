// Package sheets is the boundary to the external tabular backend. The core
// consumes it through the Gateway contract; transport failures are returned
// verbatim, wrapped with the failing operation.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Row is one backend record, keyed by column name.
type Row map[string]any

// Gateway reads and writes collections of the tabular backend. Every
// operation is bounded by its context; implementations never retry.
type Gateway interface {
	ListCollections(ctx context.Context) ([]string, error)
	ReadCollection(ctx context.Context, name string) ([]Row, error)
	AppendRow(ctx context.Context, name string, values []string) error
}

// Config controls gateway construction.
type Config struct {
	Mode    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// SeedCollections populate the mock backend.
	SeedCollections []string
}

// New constructs a gateway by explicit mode. Mode "auto" uses the HTTP
// backend when a base URL is configured, otherwise the in-memory mock.
func New(cfg Config) (Gateway, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.BaseURL) != "" {
			return NewHTTPGateway(cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
		}
		return NewMockGateway(cfg.SeedCollections...), nil
	case "http":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, errors.New("sheets base url is required for http mode")
		}
		return NewHTTPGateway(cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
	case "mock":
		return NewMockGateway(cfg.SeedCollections...), nil
	default:
		return nil, fmt.Errorf("unsupported sheets mode %q", cfg.Mode)
	}
}
