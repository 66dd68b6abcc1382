package llmadapter

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider identifiers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// ProviderConfig describes how to reach a chat completion provider.
type ProviderConfig struct {
	Provider     string
	Model        string
	APIKey       string
	BaseURL      string
	Organization string
}

// CreateLLM builds the langchaingo model for the configured provider.
func CreateLLM(p *ProviderConfig) (llms.Model, error) {
	if p == nil {
		return nil, fmt.Errorf("provider config must not be nil")
	}
	switch p.Provider {
	case ProviderOpenAI:
		return createOpenAILLM(p)
	case ProviderOllama:
		return createOllamaLLM(p)
	case ProviderMock:
		return NewMockLLM(p.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", p.Provider)
	}
}

func createOpenAILLM(p *ProviderConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(p.Model),
	}
	if p.APIKey != "" {
		opts = append(opts, openai.WithToken(p.APIKey))
	}
	if p.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(p.BaseURL))
	}
	if p.Organization != "" {
		opts = append(opts, openai.WithOrganization(p.Organization))
	}
	return openai.New(opts...)
}

func createOllamaLLM(p *ProviderConfig) (llms.Model, error) {
	opts := []ollama.Option{
		ollama.WithModel(p.Model),
	}
	if p.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(p.BaseURL))
	}
	if p.Organization != "" {
		return nil, fmt.Errorf("ollama does not support organization")
	}
	return ollama.New(opts...)
}
