package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiClient completes through the Google Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiClient(apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultGeminiModel
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temp := req.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return Response{}, fmt.Errorf("gemini completion: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return Response{}, fmt.Errorf("gemini completion: empty reply")
	}
	return Response{Text: text}, nil
}
