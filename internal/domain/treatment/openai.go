package treatment

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"

	"leaf-diagnosis-server/internal/platform/errors"
)

// TextGenerator produces free text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OpenAIConfig selects the chat completion model.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
}

func NewOpenAIGenerator(cfg OpenAIConfig) *OpenAIGenerator {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: float32(g.cfg.Temperature),
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrap(errors.KindAdvisoryUnavailable, "openai.generate", "API call failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.KindAdvisoryUnavailable, "openai.generate", "no response choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New(errors.KindAdvisoryUnavailable, "openai.generate", "empty response content")
	}
	return content, nil
}
