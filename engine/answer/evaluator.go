package answer

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/compozy/molrag/engine/core"
	llmadapter "github.com/compozy/molrag/engine/llm/adapter"
	"github.com/compozy/molrag/engine/prompt"
	"github.com/compozy/molrag/pkg/logger"
)

// Evaluator asks the judge model whether retrieved context can answer a query.
type Evaluator struct {
	llm       Completer
	prompts   PromptStore
	model     string
	temp      float64
	maxTokens int
	tracer    trace.Tracer
}

func NewEvaluator(llm Completer, prompts PromptStore, model string, temperature float64, maxTokens int) (*Evaluator, error) {
	if llm == nil {
		return nil, errors.New("answer: evaluator requires a completer")
	}
	if prompts == nil {
		return nil, errors.New("answer: evaluator requires a prompt store")
	}
	return &Evaluator{
		llm:       llm,
		prompts:   prompts,
		model:     model,
		temp:      temperature,
		maxTokens: maxTokens,
		tracer:    otel.Tracer("molrag.answer.evaluator"),
	}, nil
}

// Evaluate makes exactly one judge call. Unrecognized output fails closed to
// VerdictInsufficientAndIrrelevant; transport failures return ErrGeneration.
func (e *Evaluator) Evaluate(ctx context.Context, query, contextText string) (Verdict, error) {
	ctx, span := e.tracer.Start(ctx, "molrag.answer.evaluate", trace.WithAttributes(
		attribute.String("model", e.model),
		attribute.Int("context_length", len(contextText)),
	))
	defer span.End()
	log := logger.FromContext(ctx)
	text, err := compilePrompt(e.prompts, prompt.RelevanceEval, map[string]any{
		"query":   query,
		"context": contextText,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	start := time.Now()
	resp, err := e.llm.GenerateContent(ctx, &llmadapter.LLMRequest{
		Messages: []llmadapter.Message{{Role: llmadapter.RoleUser, Content: text}},
		Options: llmadapter.CallOptions{
			Model:       e.model,
			Temperature: e.temp,
			MaxTokens:   e.maxTokens,
		},
	})
	if err != nil {
		recordGeneration(ctx, StageJudge, e.model, time.Since(start), nil, true)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", generationError(StageJudge, err)
	}
	var raw string
	var usage *llmadapter.Usage
	if resp != nil {
		raw, usage = resp.Content, resp.Usage
	}
	recordGeneration(ctx, StageJudge, e.model, time.Since(start), usage, false)
	verdict, ok := ParseVerdict(raw)
	if !ok {
		log.Warn("Unexpected judge output, defaulting verdict",
			"raw", core.RedactString(raw),
			"verdict", verdict,
		)
	}
	span.SetAttributes(attribute.String("verdict", verdict.String()), attribute.Bool("coerced", !ok))
	log.Info("Context evaluated", "verdict", verdict)
	return verdict, nil
}
