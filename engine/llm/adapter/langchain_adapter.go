package llmadapter

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// LangChainAdapter adapts a langchaingo model to LLMClient.
type LangChainAdapter struct {
	model    llms.Model
	provider ProviderConfig
	errors   *ErrorParser
}

// NewLangChainAdapter creates the provider model described by config.
func NewLangChainAdapter(config *ProviderConfig) (*LangChainAdapter, error) {
	model, err := CreateLLM(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM model: %w", err)
	}
	return NewLangChainAdapterWithModel(*config, model), nil
}

// NewLangChainAdapterWithModel wraps an already constructed model.
func NewLangChainAdapterWithModel(config ProviderConfig, model llms.Model) *LangChainAdapter {
	return &LangChainAdapter{
		model:    model,
		provider: config,
		errors:   NewErrorParser(config.Provider),
	}
}

// GenerateContent implements LLMClient.
func (a *LangChainAdapter) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request must not be nil")
	}
	if err := ValidateMessages(req.Messages); err != nil {
		return nil, err
	}
	messages := a.convertMessages(req)
	options := a.buildCallOptions(req)
	response, err := a.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		if parsed := a.errors.ParseError(err); parsed != nil {
			return nil, parsed
		}
		return nil, fmt.Errorf("langchain GenerateContent failed: %w", err)
	}
	out, err := a.convertResponse(response)
	if err != nil {
		return nil, err
	}
	out.Model = a.modelName(req)
	return out, nil
}

// Close implements LLMClient. langchaingo models hold no resources.
func (a *LangChainAdapter) Close() error {
	return nil
}

func (a *LangChainAdapter) modelName(req *LLMRequest) string {
	if req.Options.Model != "" {
		return req.Options.Model
	}
	return a.provider.Model
}

func (a *LangChainAdapter) convertMessages(req *LLMRequest) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		messages = append(messages, llms.TextParts(mapMessageRole(msg.Role), msg.Content))
	}
	return messages
}

func mapMessageRole(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// buildCallOptions always sends the temperature: every call site configures one explicitly.
func (a *LangChainAdapter) buildCallOptions(req *LLMRequest) []llms.CallOption {
	options := []llms.CallOption{
		llms.WithTemperature(req.Options.Temperature),
	}
	if req.Options.Model != "" {
		options = append(options, llms.WithModel(req.Options.Model))
	}
	if req.Options.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(req.Options.MaxTokens))
	}
	return options
}

func (a *LangChainAdapter) convertResponse(resp *llms.ContentResponse) (*LLMResponse, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, fmt.Errorf("empty response from LLM")
	}
	choice := resp.Choices[0]
	return &LLMResponse{
		Content: choice.Content,
		Usage:   usageFromGenerationInfo(choice.GenerationInfo),
	}, nil
}

// usageFromGenerationInfo reads the token counters langchaingo providers expose.
func usageFromGenerationInfo(info map[string]any) *Usage {
	if len(info) == 0 {
		return nil
	}
	usage := &Usage{
		PromptTokens:     intFromAny(info["PromptTokens"]),
		CompletionTokens: intFromAny(info["CompletionTokens"]),
		TotalTokens:      intFromAny(info["TotalTokens"]),
	}
	if usage.PromptTokens == 0 && usage.CompletionTokens == 0 && usage.TotalTokens == 0 {
		return nil
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
