package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const jsonMIMEType = "application/json"

// sanitizeUTF8 replaces invalid byte runs with U+FFFD. The Gemini protobuf API
// rejects invalid UTF-8, and channel posts occasionally carry it.
func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// googleGenerator implements Generator for Google Gemini.
type googleGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
	logger *zerolog.Logger
}

// NewGoogleGenerator creates a Gemini generator tuned for deterministic JSON
// answers.
func NewGoogleGenerator(ctx context.Context, apiKey, model string, logger *zerolog.Logger) (*googleGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating google genai client: %w", err)
	}

	if model == "" {
		model = defaultGoogleModel
	}

	genModel := client.GenerativeModel(model)
	genModel.SetTemperature(0)
	genModel.ResponseMIMEType = jsonMIMEType

	return &googleGenerator{
		client: client,
		model:  genModel,
		name:   model,
		logger: logger,
	}, nil
}

// Name returns the provider identifier.
func (g *googleGenerator) Name() ProviderName {
	return ProviderGoogle
}

// Generate implements Generator. A blocked or empty answer is returned as ""
// so the caller treats it like any other unusable reply.
func (g *googleGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(sanitizeUTF8(prompt)))
	if err != nil {
		return "", fmt.Errorf(errGoogleGenAICompletion, err)
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		event := g.logger.Debug().Str(logFieldProvider, string(ProviderGoogle)).Str("model", g.name)
		if resp != nil && resp.PromptFeedback != nil {
			event = event.Str("block_reason", resp.PromptFeedback.BlockReason.String())
		}

		event.Msg("Gemini returned no text")
	}

	return text, nil
}

// Close closes the Google client.
func (g *googleGenerator) Close() error {
	if err := g.client.Close(); err != nil {
		return fmt.Errorf("closing google genai client: %w", err)
	}

	return nil
}

// responseText joins the text parts of the first candidate that has any.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}

		var sb strings.Builder

		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}

		if sb.Len() > 0 {
			return sb.String()
		}
	}

	return ""
}
