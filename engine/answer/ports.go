package answer

import (
	"context"

	"github.com/compozy/molrag/engine/knowledge"
	llmadapter "github.com/compozy/molrag/engine/llm/adapter"
	"github.com/compozy/molrag/engine/llm/websearch"
	"github.com/compozy/molrag/engine/prompt"
)

// Retriever returns the ranked context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (*knowledge.ContextBundle, error)
}

// Completer is the judge and generation endpoint.
type Completer interface {
	GenerateContent(ctx context.Context, req *llmadapter.LLMRequest) (*llmadapter.LLMResponse, error)
}

// WebSearcher is the web-search-augmented generation endpoint.
type WebSearcher interface {
	CompleteWithWebSearch(ctx context.Context, messages []llmadapter.Message, model string) (*websearch.Result, error)
}

// PromptStore resolves prompt templates by name.
type PromptStore interface {
	Get(name string) (*prompt.Template, error)
}

func compilePrompt(store PromptStore, name string, vars map[string]any) (string, error) {
	tmpl, err := store.Get(name)
	if err != nil {
		return "", promptError(name, err)
	}
	text, err := tmpl.Compile(vars)
	if err != nil {
		return "", promptError(name, err)
	}
	return text, nil
}
