package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/compozy/molrag/engine/core"
	"github.com/compozy/molrag/engine/knowledge"
	"github.com/compozy/molrag/engine/knowledge/index"
	"github.com/compozy/molrag/pkg/logger"
)

// DefaultTopK is the number of passages returned when the caller passes k <= 0.
const DefaultTopK = 8

// queryReplacer strips characters that break the index query grammar. This is
// lossy: "What's" becomes "Whats".
var queryReplacer = strings.NewReplacer("'", "", "`", "")

// SanitizeQuery removes apostrophes and backticks.
func SanitizeQuery(query string) string {
	return queryReplacer.Replace(query)
}

type Service struct {
	searcher  index.Searcher
	provider  string
	estimator TokenEstimator
	maxTokens int
	topK      int
	tracer    trace.Tracer
}

type Option func(*Service)

// WithTokenBudget drops the lowest ranked passages once their combined size
// exceeds maxTokens. Zero disables the budget.
func WithTokenBudget(estimator TokenEstimator, maxTokens int) Option {
	return func(s *Service) {
		if estimator != nil {
			s.estimator = estimator
		}
		s.maxTokens = maxTokens
	}
}

// WithDefaultTopK overrides DefaultTopK.
func WithDefaultTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithProviderName labels logs and metrics with the backing index.
func WithProviderName(name string) Option {
	return func(s *Service) {
		s.provider = name
	}
}

func NewService(searcher index.Searcher, opts ...Option) (*Service, error) {
	if searcher == nil {
		return nil, errors.New("knowledge: retriever searcher is required")
	}
	s := &Service{
		searcher:  searcher,
		provider:  "unknown",
		estimator: runeEstimator{},
		topK:      DefaultTopK,
		tracer:    otel.Tracer("molrag.knowledge.retriever"),
	}
	if named, ok := searcher.(interface{ Provider() index.Provider }); ok {
		s.provider = string(named.Provider())
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Retrieve sanitizes the query, runs one hybrid search and renders the
// passages into delimited document blocks in rank order.
func (s *Service) Retrieve(ctx context.Context, query string, k int) (bundle *knowledge.ContextBundle, err error) {
	if k <= 0 {
		k = s.topK
	}
	sanitized := SanitizeQuery(query)
	log := logger.FromContext(ctx).With("provider", s.provider, "top_k", k)
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "molrag.knowledge.retriever.retrieve", trace.WithAttributes(
		attribute.String("provider", s.provider),
		attribute.Int("top_k", k),
	))
	defer s.finishRetrieve(ctx, span, start, &bundle, &err)

	if strings.TrimSpace(sanitized) == "" {
		log.Warn("Query is empty after sanitization, skipping index")
		knowledge.RecordRetrievalEmpty(ctx, s.provider, "blank_query")
		return &knowledge.ContextBundle{}, nil
	}
	log.Info("Knowledge retrieval started", "query_length", len(sanitized))
	hits, err := s.search(ctx, sanitized, k)
	if err != nil {
		return nil, err
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	passages := s.buildPassages(ctx, hits)
	if len(passages) == 0 {
		knowledge.RecordRetrievalEmpty(ctx, s.provider, "no_hits")
	}
	return &knowledge.ContextBundle{
		Context:  RenderContext(passages),
		Passages: passages,
	}, nil
}

func (s *Service) search(ctx context.Context, query string, k int) ([]index.Hit, error) {
	spanCtx, span := s.tracer.Start(ctx, "molrag.knowledge.retriever.hybrid_search", trace.WithAttributes(
		attribute.String("provider", s.provider),
		attribute.Int("top_k", k),
	))
	defer span.End()
	hits, err := s.searcher.Search(spanCtx, query, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("knowledge: hybrid search: %w", err)
	}
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

func (s *Service) buildPassages(ctx context.Context, hits []index.Hit) []knowledge.Passage {
	if len(hits) == 0 {
		return nil
	}
	passages := make([]knowledge.Passage, len(hits))
	tokenCounts := make([]int, len(hits))
	total := 0
	for i := range hits {
		passages[i] = knowledge.NewPassage(hits[i].ID, hits[i].Text, hits[i].Metadata, i+1, hits[i].Score)
		if s.maxTokens > 0 {
			tokenCounts[i] = s.estimator.EstimateTokens(ctx, hits[i].Text)
			total += tokenCounts[i]
		}
	}
	return trimPassages(passages, tokenCounts, total, s.maxTokens)
}

// trimPassages drops passages from the end until the budget is met.
func trimPassages(passages []knowledge.Passage, tokenCounts []int, total, maxTokens int) []knowledge.Passage {
	if maxTokens <= 0 {
		return passages
	}
	for total > maxTokens && len(passages) > 0 {
		last := len(passages) - 1
		total -= tokenCounts[last]
		passages = passages[:last]
		tokenCounts = tokenCounts[:last]
	}
	return passages
}

func (s *Service) finishRetrieve(
	ctx context.Context,
	span trace.Span,
	start time.Time,
	bundle **knowledge.ContextBundle,
	runErr *error,
) {
	duration := time.Since(start)
	knowledge.RecordQueryLatency(ctx, s.provider, duration)
	log := logger.FromContext(ctx).With("provider", s.provider)
	seconds := duration.Seconds()
	if runErr != nil && *runErr != nil {
		err := *runErr
		log.Error("Knowledge retrieval failed", "error", core.RedactError(err), "duration_seconds", seconds)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return
	}
	total := 0
	if bundle != nil && *bundle != nil {
		total = (*bundle).Len()
	}
	log.Info("Knowledge retrieval finished", "results", total, "duration_seconds", seconds)
	span.SetAttributes(attribute.Int("results", total))
	span.End()
}
