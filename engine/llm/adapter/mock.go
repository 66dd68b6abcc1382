package llmadapter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// MockCall records one GenerateContent invocation.
type MockCall struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

// Prompt joins the text parts of every recorded message.
func (c MockCall) Prompt() string {
	var b strings.Builder
	for _, message := range c.Messages {
		for _, part := range message.Parts {
			if text, ok := part.(llms.TextContent); ok {
				if b.Len() > 0 {
					b.WriteString("\n")
				}
				b.WriteString(text.Text)
			}
		}
	}
	return b.String()
}

// MockLLM is a langchaingo model returning scripted replies in order. Once the
// script is exhausted it echoes the last user message.
type MockLLM struct {
	model string

	mu        sync.Mutex
	responses []string
	err       error
	calls     []MockCall
}

func NewMockLLM(model string, responses ...string) *MockLLM {
	return &MockLLM{model: model, responses: responses}
}

// WithError makes every subsequent call fail with err.
func (m *MockLLM) WithError(err error) *MockLLM {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	return m
}

func (m *MockLLM) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := llms.CallOptions{Model: m.model}
	for _, opt := range options {
		opt(&opts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	call := MockCall{Messages: messages, Options: opts}
	m.calls = append(m.calls, call)
	if m.err != nil {
		return nil, m.err
	}
	var text string
	if len(m.responses) > 0 {
		text = m.responses[0]
		m.responses = m.responses[1:]
	} else {
		text = fmt.Sprintf("Mock response for: %s", lastUserText(messages))
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text}},
	}, nil
}

func (m *MockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Calls returns a copy of the recorded invocations.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

func lastUserText(messages []llms.MessageContent) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != llms.ChatMessageTypeHuman {
			continue
		}
		for _, part := range messages[i].Parts {
			if text, ok := part.(llms.TextContent); ok {
				return text.Text
			}
		}
	}
	return ""
}
