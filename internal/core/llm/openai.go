package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// openaiGenerator implements Generator for OpenAI-compatible chat completion APIs.
type openaiGenerator struct {
	client *openai.Client
	model  string
	logger *zerolog.Logger
}

// NewOpenAIGenerator creates a generator for the OpenAI API or any server
// speaking its protocol when baseURL is set.
func NewOpenAIGenerator(apiKey, baseURL, model string, logger *zerolog.Logger) *openaiGenerator {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	if model == "" {
		model = defaultOpenAIModel
	}

	return &openaiGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}
}

// Name returns the provider identifier.
func (g *openaiGenerator) Name() ProviderName {
	return ProviderOpenAI
}

// Generate implements Generator.
func (g *openaiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: sanitizeUTF8(prompt)},
		},
	})
	if err != nil {
		return "", fmt.Errorf(errOpenAIChatCompletion, err)
	}

	if len(resp.Choices) == 0 {
		g.logger.Debug().Str(logFieldProvider, string(ProviderOpenAI)).Msg("Chat completion returned no choices")

		return "", nil
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (g *openaiGenerator) Close() error {
	return nil
}
