package answer

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	llmadapter "github.com/compozy/molrag/engine/llm/adapter"
	"github.com/compozy/molrag/engine/prompt"
	"github.com/compozy/molrag/pkg/logger"
)

// NoTrustedSourceMessage replaces a web answer that cites no trusted domain.
const NoTrustedSourceMessage = "Sorry, I couldn't find any information from trusted sources regarding your question."

// WebAnswer is the outcome of the trusted web search path.
type WebAnswer struct {
	Text           string
	TrustedSources []TrustedSource
	Citations      int
}

// Trusted reports whether the answer was rewritten from trusted sources
// rather than replaced by NoTrustedSourceMessage.
func (w *WebAnswer) Trusted() bool {
	return len(w.TrustedSources) > 0
}

// WebAnswererConfig selects models for the two web path calls.
type WebAnswererConfig struct {
	SearchModel       string
	FilterModel       string
	FilterTemperature float64
}

// WebAnswerer searches the web and rewrites the result from trusted citations only.
type WebAnswerer struct {
	searcher WebSearcher
	llm      Completer
	prompts  PromptStore
	policy   *TrustPolicy
	cfg      WebAnswererConfig
	tracer   trace.Tracer
}

func NewWebAnswerer(
	searcher WebSearcher,
	llm Completer,
	prompts PromptStore,
	policy *TrustPolicy,
	cfg WebAnswererConfig,
) (*WebAnswerer, error) {
	switch {
	case searcher == nil:
		return nil, errors.New("answer: web answerer requires a web searcher")
	case llm == nil:
		return nil, errors.New("answer: web answerer requires a completer")
	case prompts == nil:
		return nil, errors.New("answer: web answerer requires a prompt store")
	case policy == nil:
		return nil, errors.New("answer: web answerer requires a trust policy")
	}
	return &WebAnswerer{
		searcher: searcher,
		llm:      llm,
		prompts:  prompts,
		policy:   policy,
		cfg:      cfg,
		tracer:   otel.Tracer("molrag.answer.websearch"),
	}, nil
}

// AnswerWithWebSearch runs the search call and, when at least one citation is
// trusted, a second call that keeps only claims from trusted sources. The
// unfiltered draft is never returned.
func (w *WebAnswerer) AnswerWithWebSearch(
	ctx context.Context,
	query string,
	history []ConversationTurn,
) (answer *WebAnswer, err error) {
	ctx, span := w.tracer.Start(ctx, "molrag.answer.web_search", trace.WithAttributes(
		attribute.String("search_model", w.cfg.SearchModel),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	log := logger.FromContext(ctx)
	valid := ValidateHistory(ctx, history)
	searchPrompt, err := compilePrompt(w.prompts, prompt.WebSearch, map[string]any{"query": query})
	if err != nil {
		return nil, err
	}
	messages := append(toMessages(valid), llmadapter.Message{Role: llmadapter.RoleUser, Content: searchPrompt})
	log.Debug("Performing web search", "history_length", len(valid))
	start := time.Now()
	result, err := w.searcher.CompleteWithWebSearch(ctx, messages, w.cfg.SearchModel)
	if err != nil {
		recordGeneration(ctx, StageWebSearch, w.cfg.SearchModel, time.Since(start), nil, true)
		return nil, generationError(StageWebSearch, err)
	}
	if result == nil {
		return nil, generationError(StageWebSearch, errors.New("empty response"))
	}
	recordGeneration(ctx, StageWebSearch, w.cfg.SearchModel, time.Since(start), nil, false)
	trusted := w.policy.Filter(ctx, result.Citations)
	span.SetAttributes(
		attribute.Int("citations", len(result.Citations)),
		attribute.Int("trusted_sources", len(trusted)),
	)
	log.Info("Web search completed", "citations", len(result.Citations), "trusted_sources", len(trusted))
	if len(trusted) == 0 {
		log.Warn("No trusted sources cited, discarding web answer")
		return &WebAnswer{Text: NoTrustedSourceMessage, Citations: len(result.Citations)}, nil
	}
	filtered, err := w.filter(ctx, query, result.Text, trusted)
	if err != nil {
		return nil, err
	}
	return &WebAnswer{Text: filtered, TrustedSources: trusted, Citations: len(result.Citations)}, nil
}

func (w *WebAnswerer) filter(ctx context.Context, query, draft string, trusted []TrustedSource) (string, error) {
	text, err := compilePrompt(w.prompts, prompt.TrustedFilter, map[string]any{
		"trusted_sources": formatTrustedSources(trusted),
		"query":           query,
		"original_answer": draft,
	})
	if err != nil {
		return "", err
	}
	start := time.Now()
	resp, err := w.llm.GenerateContent(ctx, &llmadapter.LLMRequest{
		Messages: []llmadapter.Message{{Role: llmadapter.RoleUser, Content: text}},
		Options: llmadapter.CallOptions{
			Model:       w.cfg.FilterModel,
			Temperature: w.cfg.FilterTemperature,
		},
	})
	if err != nil {
		recordGeneration(ctx, StageFilter, w.cfg.FilterModel, time.Since(start), nil, true)
		return "", generationError(StageFilter, err)
	}
	if resp == nil {
		return "", generationError(StageFilter, errors.New("empty response"))
	}
	recordGeneration(ctx, StageFilter, w.cfg.FilterModel, time.Since(start), resp.Usage, false)
	logger.FromContext(ctx).Debug("Answer filtered to trusted sources", "sources", len(trusted))
	return resp.Content, nil
}
