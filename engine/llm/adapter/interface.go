package llmadapter

import (
	"context"
	"fmt"
)

// Role constants for message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LLMRequest is a provider independent chat completion request.
type LLMRequest struct {
	SystemPrompt string
	Messages     []Message
	Options      CallOptions
}

// Message represents a conversation message
type Message struct {
	Role    string
	Content string
}

// CallOptions selects the model and sampling for one call.
// An empty Model uses the client default. MaxTokens <= 0 leaves the budget to the provider.
type CallOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// LLMResponse represents the response from the LLM
type LLMResponse struct {
	Content string
	Model   string
	Usage   *Usage
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMClient is the judge and generation endpoint used by the answer engine.
type LLMClient interface {
	GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
	Close() error
}

// ValidateMessages rejects unknown roles before they reach a provider.
func ValidateMessages(messages []Message) error {
	for i, m := range messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message[%d] has unsupported role %q", i, m.Role)
		}
	}
	return nil
}
