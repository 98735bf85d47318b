package oracle

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no real oracle is
// configured. It echoes the prompt, which downstream strict decoders treat as
// an unusable completion and recover from via their fallback chains.
type MockClient struct {
	Reply string
}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Name() string { return "mock" }

func (c *MockClient) Complete(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	if c.Reply != "" {
		return Response{Text: c.Reply}, nil
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = "nothing"
	}
	return Response{Text: fmt.Sprintf("mock oracle heard: %s", prompt)}, nil
}
