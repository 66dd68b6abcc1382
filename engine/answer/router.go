package answer

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/compozy/molrag/engine/core"
	"github.com/compozy/molrag/engine/knowledge"
	llmadapter "github.com/compozy/molrag/engine/llm/adapter"
	"github.com/compozy/molrag/engine/prompt"
	"github.com/compozy/molrag/pkg/logger"
)

// OutOfScopeMessage is returned, without any model call, for queries the judge
// finds unrelated to the knowledge domain.
const OutOfScopeMessage = "Sorry, I can't help you with that question"

// Outcome names the terminal branch that produced an answer.
type Outcome string

const (
	OutcomeLocalAnswer     Outcome = "local_answer"
	OutcomeWebAnswer       Outcome = "web_answer"
	OutcomeNoTrustedSource Outcome = "no_trusted_source"
	OutcomeOutOfScope      Outcome = "out_of_scope"
)

// AnswerResult is the envelope returned for every answered query.
type AnswerResult struct {
	RequestID      core.ID
	Answer         string
	Context        knowledge.ContextBundle
	UsedWebSearch  bool
	Verdict        Verdict
	Outcome        Outcome
	TrustedSources []TrustedSource
	// History is the validated input history followed by this exchange.
	History []ConversationTurn
}

// Config holds the models and sampling settings of the router.
type Config struct {
	TopK              int
	AnswerModel       string
	AnswerTemperature float64
	JudgeModel        string
	JudgeTemperature  float64
	JudgeMaxTokens    int
	WebSearchModel    string
	FilterModel       string
	FilterTemperature float64
	TrustedDomains    []string
}

func DefaultConfig() Config {
	return Config{
		TopK:              8,
		AnswerModel:       "gpt-4o",
		AnswerTemperature: 0.6,
		JudgeModel:        "gpt-4o",
		JudgeTemperature:  0.1,
		JudgeMaxTokens:    50,
		WebSearchModel:    "gpt-4o-search-preview",
		FilterModel:       "gpt-4o",
		FilterTemperature: 0.3,
		TrustedDomains:    append([]string(nil), DefaultTrustedDomains...),
	}
}

// Router runs one retrieval, one evaluation and then exactly one of the local,
// web search or refusal branches. It holds no per-query state and is safe for
// concurrent use when its collaborators are.
type Router struct {
	retriever Retriever
	evaluator *Evaluator
	web       *WebAnswerer
	llm       Completer
	prompts   PromptStore
	cfg       Config
	tracer    trace.Tracer
}

func NewRouter(
	retriever Retriever,
	llm Completer,
	searcher WebSearcher,
	prompts PromptStore,
	cfg Config,
) (*Router, error) {
	if retriever == nil {
		return nil, errors.New("answer: router requires a retriever")
	}
	evaluator, err := NewEvaluator(llm, prompts, cfg.JudgeModel, cfg.JudgeTemperature, cfg.JudgeMaxTokens)
	if err != nil {
		return nil, err
	}
	policy, err := NewTrustPolicy(cfg.TrustedDomains)
	if err != nil {
		return nil, err
	}
	web, err := NewWebAnswerer(searcher, llm, prompts, policy, WebAnswererConfig{
		SearchModel:       cfg.WebSearchModel,
		FilterModel:       cfg.FilterModel,
		FilterTemperature: cfg.FilterTemperature,
	})
	if err != nil {
		return nil, err
	}
	return &Router{
		retriever: retriever,
		evaluator: evaluator,
		web:       web,
		llm:       llm,
		prompts:   prompts,
		cfg:       cfg,
		tracer:    otel.Tracer("molrag.answer.router"),
	}, nil
}

// Retrieve exposes the retrieval step on its own. Failures return ErrRetrieval.
func (r *Router) Retrieve(ctx context.Context, query string, k int) (*knowledge.ContextBundle, error) {
	if k <= 0 {
		k = r.cfg.TopK
	}
	bundle, err := r.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, retrievalError(err)
	}
	if bundle == nil {
		bundle = &knowledge.ContextBundle{}
	}
	return bundle, nil
}

// Evaluate exposes the judge step on its own.
func (r *Router) Evaluate(ctx context.Context, query, contextText string) (Verdict, error) {
	return r.evaluator.Evaluate(ctx, query, contextText)
}

// AnswerWithWebSearch exposes the trusted web search path on its own.
func (r *Router) AnswerWithWebSearch(ctx context.Context, query string, history []ConversationTurn) (*WebAnswer, error) {
	return r.web.AnswerWithWebSearch(ctx, query, history)
}

// GenerateAnswer answers query given the caller's history. The history slice
// is read, never modified; the result carries an updated copy.
func (r *Router) GenerateAnswer(
	ctx context.Context,
	query string,
	history []ConversationTurn,
) (result *AnswerResult, err error) {
	if strings.TrimSpace(query) == "" {
		return nil, core.NewError(ErrEmptyQuery, CodeInvalidQuery, nil)
	}
	requestID, err := core.NewID()
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("request_id", requestID)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx, span := r.tracer.Start(ctx, "molrag.answer.generate", trace.WithAttributes(
		attribute.String("request_id", requestID.String()),
	))
	start := time.Now()
	defer func() {
		if err != nil {
			log.Error("Answer generation failed", "error", core.RedactError(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("outcome", string(result.Outcome)),
				attribute.Bool("used_web_search", result.UsedWebSearch),
			)
			log.Info("Answer generated", "outcome", result.Outcome, "duration_seconds", time.Since(start).Seconds())
		}
		span.End()
	}()

	bundle, err := r.Retrieve(ctx, query, r.cfg.TopK)
	if err != nil {
		return nil, err
	}
	verdict, err := r.evaluator.Evaluate(ctx, query, bundle.Context)
	if err != nil {
		return nil, err
	}
	valid := ValidateHistory(ctx, history)
	result = &AnswerResult{
		RequestID: requestID,
		Context:   bundle.Clone(),
		Verdict:   verdict,
	}
	switch verdict {
	case VerdictSufficient:
		log.Info("Answering from local context", "passages", bundle.Len())
		text, err := r.answerLocally(ctx, query, bundle.Context, valid)
		if err != nil {
			return nil, err
		}
		result.Answer = text
		result.Outcome = OutcomeLocalAnswer
	case VerdictInsufficientButRelevant:
		log.Info("Local context insufficient, answering from trusted web sources")
		web, err := r.web.AnswerWithWebSearch(ctx, query, valid)
		if err != nil {
			return nil, err
		}
		result.Answer = web.Text
		result.UsedWebSearch = true
		result.TrustedSources = web.TrustedSources
		result.Outcome = OutcomeWebAnswer
		if !web.Trusted() {
			result.Outcome = OutcomeNoTrustedSource
		}
	default:
		log.Info("Query outside knowledge domain, refusing")
		result.Answer = OutOfScopeMessage
		result.Outcome = OutcomeOutOfScope
	}
	result.History = appendExchange(valid, query, result.Answer)
	recordRoute(ctx, result.Outcome)
	return result, nil
}

func (r *Router) answerLocally(ctx context.Context, query, contextText string, history []ConversationTurn) (string, error) {
	system, err := compilePrompt(r.prompts, prompt.LocalAnswer, map[string]any{"context": contextText})
	if err != nil {
		return "", err
	}
	messages := append(toMessages(history), llmadapter.Message{Role: llmadapter.RoleUser, Content: query})
	start := time.Now()
	resp, err := r.llm.GenerateContent(ctx, &llmadapter.LLMRequest{
		SystemPrompt: system,
		Messages:     messages,
		Options: llmadapter.CallOptions{
			Model:       r.cfg.AnswerModel,
			Temperature: r.cfg.AnswerTemperature,
		},
	})
	if err != nil {
		recordGeneration(ctx, StageLocal, r.cfg.AnswerModel, time.Since(start), nil, true)
		return "", generationError(StageLocal, err)
	}
	if resp == nil {
		return "", generationError(StageLocal, errors.New("empty response"))
	}
	recordGeneration(ctx, StageLocal, r.cfg.AnswerModel, time.Since(start), resp.Usage, false)
	return resp.Content, nil
}

func appendExchange(history []ConversationTurn, query, answer string) []ConversationTurn {
	out := make([]ConversationTurn, 0, len(history)+2)
	out = append(out, history...)
	return append(out,
		ConversationTurn{Role: RoleUser, Content: query},
		ConversationTurn{Role: RoleAssistant, Content: answer},
	)
}
