package provider

import (
	"context"
	"errors"

	"github.com/jamesnation/deepsearch/config"
	openai_provider "github.com/jamesnation/deepsearch/provider/openai"
)

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// Generate produces text for a prompt using the named model.
	Generate(ctx context.Context, prompt string, model string) (string, error)

	// GenerateWithTokens produces text and returns prompt/completion token counts.
	GenerateWithTokens(ctx context.Context, prompt string, model string) (string, int64, int64, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMProvider) (Provider, error) {
	switch cfg.Type {
	case "openai":
		return openai_provider.New(cfg), nil
	case "anthropic":
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
