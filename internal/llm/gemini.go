package llm

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"dietbot/internal/config"
)

// GeminiClient talks to the Gemini API through the official SDK.
type GeminiClient struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, newError(KindAuth, "API key not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, newError(KindGeneric, "failed to create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "mistral") {
		model = "gemini-2.0-flash"
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// Advise sends one system+user round and returns the answer text.
func (c *GeminiClient) Advise(ctx context.Context, system, user string) (string, error) {
	temperature := float32(c.temperature)
	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(c.maxTokens),
	}
	if system != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(user, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genConfig)
	if err != nil {
		return "", classifyGenAIError(err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", newError(KindMalformed, "empty completion returned")
	}

	c.logger.Debug("gemini completion", zap.String("model", c.model))
	return answer, nil
}

func classifyGenAIError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, "request timed out: %w", err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			return newError(KindAuth, "authentication rejected: %w", err)
		case 429:
			return newError(KindRateLimited, "upstream rate limit: %w", err)
		}
	}
	return newError(KindGeneric, "generation failed: %w", err)
}
