package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/compozy/molrag/engine/answer"
	"github.com/compozy/molrag/engine/infra/monitoring"
	"github.com/compozy/molrag/engine/knowledge/embedder"
	"github.com/compozy/molrag/engine/knowledge/index"
	"github.com/compozy/molrag/engine/knowledge/retriever"
	llmadapter "github.com/compozy/molrag/engine/llm/adapter"
	"github.com/compozy/molrag/engine/llm/websearch"
	"github.com/compozy/molrag/engine/prompt"
	"github.com/compozy/molrag/pkg/config"
	"github.com/compozy/molrag/pkg/logger"
)

// app holds the long-lived handles built once per process.
type app struct {
	cfg        *config.Config
	monitoring *monitoring.Service
	index      index.Index
	llm        llmadapter.LLMClient
	router     *answer.Router
}

// newApp wires config -> monitoring -> embedder -> index -> retriever ->
// model clients -> prompts -> router.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	if cfg == nil {
		return nil, errors.New("configuration not found in context")
	}
	log := logger.FromContext(ctx)
	rt := &app{cfg: cfg}
	defer func() {
		if err != nil {
			rt.Close(ctx)
		}
	}()

	rt.monitoring = monitoring.NewMonitoringServiceWithFallback(ctx, &monitoring.Config{
		Enabled: cfg.Monitoring.Enabled,
		Addr:    cfg.Monitoring.Addr,
		Path:    cfg.Monitoring.Path,
	})
	rt.monitoring.SetAsGlobal()

	emb, err := embedder.New(embedderConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	rt.index, err = index.New(ctx, indexConfig(cfg), emb)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s index: %w", cfg.Index.Provider, err)
	}
	if local, ok := rt.index.(*index.LocalIndex); ok && local.Count() == 0 {
		log.Warn("Local index is empty, every question will be judged without context",
			"path", cfg.Index.PersistPath, "collection", cfg.Index.Collection)
	}
	ret, err := newRetriever(cfg, rt.index)
	if err != nil {
		return nil, err
	}
	rt.llm, err = llmadapter.NewLangChainAdapter(providerConfig(cfg))
	if err != nil {
		return nil, err
	}
	searcher := websearch.New(websearch.Config{
		BaseURL:      cfg.OpenAI.BaseURL,
		APIKey:       cfg.OpenAI.APIKey.Value(),
		Organization: cfg.OpenAI.OrgID,
		Model:        cfg.Models.WebSearchModel,
		Timeout:      cfg.Runtime.RequestTimeout,
		Debug:        cfg.Runtime.LogLevel == string(logger.DebugLevel),
		Logger:       logger.FromContext(ctx),
	})
	prompts, err := prompt.NewStore(cfg.Prompts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	if err := prompts.Validate(prompt.Required...); err != nil {
		return nil, err
	}
	rt.router, err = answer.NewRouter(ret, rt.llm, searcher, prompts, routerConfig(cfg))
	if err != nil {
		return nil, err
	}
	log.Debug("Application ready",
		"index", rt.index.Provider(),
		"answer_model", cfg.Models.AnswerModel,
		"trusted_domains", cfg.Trust.AllowedDomains,
		"prompts", prompts.Names(),
	)
	return rt, nil
}

// Close releases the index connection and flushes metrics.
func (rt *app) Close(ctx context.Context) {
	log := logger.FromContext(ctx)
	if rt.index != nil {
		if err := rt.index.Close(ctx); err != nil {
			log.Warn("Failed to close index", "error", err)
		}
	}
	if rt.llm != nil {
		if err := rt.llm.Close(); err != nil {
			log.Warn("Failed to close LLM client", "error", err)
		}
	}
	if rt.monitoring != nil {
		if err := rt.monitoring.Shutdown(ctx); err != nil {
			log.Warn("Failed to shutdown monitoring", "error", err)
		}
	}
}

func newRetriever(cfg *config.Config, idx index.Index) (*retriever.Service, error) {
	opts := []retriever.Option{retriever.WithDefaultTopK(cfg.Retrieval.TopK)}
	if cfg.Retrieval.MaxTokens > 0 {
		estimator, err := retriever.NewTiktokenEstimator(cfg.Retrieval.TokenModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create token estimator: %w", err)
		}
		opts = append(opts, retriever.WithTokenBudget(estimator, cfg.Retrieval.MaxTokens))
	}
	return retriever.NewService(idx, opts...)
}

func embedderConfig(cfg *config.Config) *embedder.Config {
	out := &embedder.Config{
		Provider:      embedder.Provider(cfg.Embedder.Provider),
		Model:         cfg.Embedder.Model,
		Dimension:     cfg.Index.Dimension,
		StripNewLines: true,
		CacheSize:     cfg.Embedder.CacheSize,
	}
	switch out.Provider {
	case embedder.ProviderOpenAI:
		out.APIKey = cfg.OpenAI.APIKey.Value()
		out.BaseURL = cfg.OpenAI.BaseURL
	case embedder.ProviderOllama:
		out.BaseURL = cfg.Models.OllamaURL
	}
	return out
}

func indexConfig(cfg *config.Config) *index.Config {
	return &index.Config{
		Provider:            index.Provider(cfg.Index.Provider),
		DSN:                 cfg.Index.DSN.Value(),
		Table:               cfg.Index.Table,
		TextSearch:          cfg.Index.TextSearch,
		Dimension:           cfg.Index.Dimension,
		MaxConnections:      cfg.Index.MaxConnections,
		PersistPath:         cfg.Index.PersistPath,
		Collection:          cfg.Index.Collection,
		RRFK:                cfg.Retrieval.RRFK,
		CandidateMultiplier: cfg.Retrieval.CandidateMultiplier,
	}
}

func providerConfig(cfg *config.Config) *llmadapter.ProviderConfig {
	p := &llmadapter.ProviderConfig{
		Provider: cfg.Models.Provider,
		Model:    cfg.Models.AnswerModel,
	}
	switch cfg.Models.Provider {
	case llmadapter.ProviderOllama:
		p.BaseURL = cfg.Models.OllamaURL
	default:
		p.APIKey = cfg.OpenAI.APIKey.Value()
		p.BaseURL = cfg.OpenAI.BaseURL
		p.Organization = cfg.OpenAI.OrgID
	}
	return p
}

func routerConfig(cfg *config.Config) answer.Config {
	return answer.Config{
		TopK:              cfg.Retrieval.TopK,
		AnswerModel:       cfg.Models.AnswerModel,
		AnswerTemperature: cfg.Models.AnswerTemperature,
		JudgeModel:        cfg.Models.JudgeModel,
		JudgeTemperature:  cfg.Models.JudgeTemperature,
		JudgeMaxTokens:    cfg.Models.JudgeMaxTokens,
		WebSearchModel:    cfg.Models.WebSearchModel,
		FilterModel:       cfg.Models.FilterModel,
		FilterTemperature: cfg.Models.FilterTemperature,
		TrustedDomains:    cfg.Trust.AllowedDomains,
	}
}
