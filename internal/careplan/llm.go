package careplan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/plantops/plantops-core/internal/infrastructure/config"
)

// ErrEmptyResponse is returned when the model produces no content.
var ErrEmptyResponse = errors.New("llm returned empty response")

const systemPrompt = "You are a horticultural assistant. Given a plant's species, " +
	"configured thresholds and recent sensor readings, produce a short, practical " +
	"care plan for the next week. Be specific about watering, light and placement."

// chatRequest is an OpenAI-compatible chat completion request.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// LLMClient generates care plans via an OpenAI-compatible chat API.
type LLMClient struct {
	client *resty.Client
	model  string
}

// NewLLMClient creates a generator backed by the configured endpoint.
func NewLLMClient(cfg config.LLMConfig) *LLMClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey)

	return &LLMClient{
		client: client,
		model:  cfg.Model,
	}
}

// Generate runs one chat completion and returns the model's reply.
func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}

	var out chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("calling llm: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("llm returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return out.Choices[0].Message.Content, nil
}
