package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lueurxax/fundraising-ledger/internal/core/errors"
	"github.com/lueurxax/fundraising-ledger/internal/platform/config"
)

// ProviderName identifies an extraction service backend.
type ProviderName string

// Provider name constants.
const (
	ProviderGoogle ProviderName = config.ProviderGoogle
	ProviderOpenAI ProviderName = config.ProviderOpenAI
	ProviderMock   ProviderName = config.ProviderMock
)

// Generator is a text-completion backend. It performs exactly one remote call
// per Generate; throttling and retries live in Extractor.
type Generator interface {
	// Name returns the provider identifier.
	Name() ProviderName

	// Generate sends prompt and returns the model text. Empty text is not an error.
	Generate(ctx context.Context, prompt string) (string, error)

	// Close releases the underlying client.
	Close() error
}

// NewGenerator builds the generator selected by cfg.LLM.Provider.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (Generator, error) {
	switch ProviderName(cfg.LLM.Provider) {
	case ProviderGoogle:
		gen, err := NewGoogleGenerator(ctx, cfg.LLM.GoogleAPIKey, cfg.LLM.GeminiModel, logger)
		if err != nil {
			return nil, err
		}

		return gen, nil
	case ProviderOpenAI:
		return NewOpenAIGenerator(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, logger), nil
	case ProviderMock:
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownBackend, cfg.LLM.Provider)
	}
}
