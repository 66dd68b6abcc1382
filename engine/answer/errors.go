package answer

import (
	"errors"
	"fmt"

	"github.com/compozy/molrag/engine/core"
)

const (
	CodeRetrieval    = "RETRIEVAL_ERROR"
	CodeGeneration   = "GENERATION_ERROR"
	CodeInvalidQuery = "INVALID_QUERY"
	CodePrompt       = "PROMPT_ERROR"
)

var (
	// ErrRetrieval marks a failed index query. No fallback context is used.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration marks a failed judge, answer, web search or filter call.
	ErrGeneration = errors.New("generation failed")
	ErrEmptyQuery = errors.New("query is empty")
	// ErrPrompt marks a missing or unrenderable prompt template.
	ErrPrompt = errors.New("prompt unavailable")
)

// Generation stages, used in error details, logs and metrics.
const (
	StageJudge     = "judge"
	StageLocal     = "local_answer"
	StageWebSearch = "web_search"
	StageFilter    = "trusted_filter"
)

func retrievalError(err error) error {
	return core.NewError(fmt.Errorf("%w: %w", ErrRetrieval, err), CodeRetrieval, nil)
}

func generationError(stage string, err error) error {
	return core.NewError(
		fmt.Errorf("%w (%s): %w", ErrGeneration, stage, err),
		CodeGeneration,
		map[string]any{"stage": stage},
	)
}

func promptError(name string, err error) error {
	return core.NewError(
		fmt.Errorf("%w: %s: %w", ErrPrompt, name, err),
		CodePrompt,
		map[string]any{"prompt": name},
	)
}
