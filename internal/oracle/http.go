package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient completes through an OpenAI-compatible chat completions
// endpoint.
type HTTPClient struct {
	url    string
	model  string
	client *http.Client
}

func NewHTTPClient(url, model string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		url:   strings.TrimSpace(url),
		model: strings.TrimSpace(model),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) Name() string { return "http" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Response{}, fmt.Errorf("oracle http status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return Response{}, fmt.Errorf("oracle error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return Response{}, fmt.Errorf("oracle returned no choices")
	}

	text := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if text == "" {
		return Response{}, fmt.Errorf("oracle returned empty completion")
	}
	return Response{Text: text}, nil
}
