package answer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/molrag/engine/answer"
	"github.com/compozy/molrag/engine/core"
	"github.com/compozy/molrag/engine/knowledge"
	llmadapter "github.com/compozy/molrag/engine/llm/adapter"
	"github.com/compozy/molrag/engine/llm/websearch"
)

func TestRouter_GenerateAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("Should answer from local context when the judge finds it sufficient", func(t *testing.T) {
		bundle := threePassageBundle()
		ret := &stubRetriever{bundle: bundle}
		llm := newScriptedLLM("SUFFICIENT", "Molecule funds decentralized biotech research.")
		searcher := &stubWebSearcher{}
		router := newRouter(t, ret, llm, searcher)

		history := []answer.ConversationTurn{
			{Role: "user", Content: "Hello"},
			{Role: "assistant", Content: "Hi, how can I help?"},
		}
		result, err := router.GenerateAnswer(ctx, "What is Molecule?", history)
		require.NoError(t, err)

		assert.Equal(t, "Molecule funds decentralized biotech research.", result.Answer)
		assert.False(t, result.UsedWebSearch)
		assert.Equal(t, answer.VerdictSufficient, result.Verdict)
		assert.Equal(t, answer.OutcomeLocalAnswer, result.Outcome)
		assert.Equal(t, 3, result.Context.Len())
		assert.Equal(t, bundle.Context, result.Context.Context)
		assert.False(t, result.RequestID.IsZero())
		assert.Zero(t, searcher.calls)
		assert.Equal(t, 1, ret.calls)

		reqs := llm.Requests()
		require.Len(t, reqs, 2)
		judge := reqs[0]
		assert.Equal(t, "gpt-4o", judge.Options.Model)
		assert.InDelta(t, 0.1, judge.Options.Temperature, 1e-9)
		assert.Equal(t, 50, judge.Options.MaxTokens)
		require.Len(t, judge.Messages, 1)
		assert.Contains(t, judge.Messages[0].Content, "What is Molecule?")
		assert.Contains(t, judge.Messages[0].Content, bundle.Context)

		local := reqs[1]
		assert.Equal(t, "gpt-4o", local.Options.Model)
		assert.InDelta(t, 0.6, local.Options.Temperature, 1e-9)
		assert.Contains(t, local.SystemPrompt, bundle.Context)
		assert.Equal(t, []llmadapter.Message{
			{Role: "user", Content: "Hello"},
			{Role: "assistant", Content: "Hi, how can I help?"},
			{Role: "user", Content: "What is Molecule?"},
		}, local.Messages)

		assert.Equal(t, []answer.ConversationTurn{
			{Role: "user", Content: "Hello"},
			{Role: "assistant", Content: "Hi, how can I help?"},
			{Role: "user", Content: "What is Molecule?"},
			{Role: "assistant", Content: "Molecule funds decentralized biotech research."},
		}, result.History)
		assert.Len(t, history, 2)
	})

	t.Run("Should refuse when web search cites only untrusted sources", func(t *testing.T) {
		ret := &stubRetriever{bundle: &knowledge.ContextBundle{}}
		llm := newScriptedLLM("INSUFFICIENT_BUT_RELEVANT")
		searcher := &stubWebSearcher{result: &websearch.Result{
			Text: "Molecule raised funds according to several outlets.",
			Citations: []websearch.Citation{
				{URL: "https://news.example.com/molecule", Title: "News"},
				{URL: "https://evilmolecule.to/post", Title: "Look-alike"},
			},
		}}
		router := newRouter(t, ret, llm, searcher)

		result, err := router.GenerateAnswer(ctx, "Who invested in Molecule last year?", nil)
		require.NoError(t, err)

		assert.Equal(t, answer.NoTrustedSourceMessage, result.Answer)
		assert.True(t, result.UsedWebSearch)
		assert.Equal(t, answer.VerdictInsufficientButRelevant, result.Verdict)
		assert.Equal(t, answer.OutcomeNoTrustedSource, result.Outcome)
		assert.Empty(t, result.TrustedSources)
		assert.Equal(t, 1, searcher.calls)
		assert.Equal(t, "gpt-4o-search-preview", searcher.model)
		assert.Len(t, llm.Requests(), 1)
	})

	t.Run("Should answer from trusted web sources when the context is relevant but thin", func(t *testing.T) {
		ret := &stubRetriever{bundle: threePassageBundle()}
		llm := newScriptedLLM("insufficient_but_relevant", "According to molecule.to, IP-NFTs...")
		searcher := &stubWebSearcher{result: &websearch.Result{
			Text: "IP-NFTs were introduced by Molecule.",
			Citations: []websearch.Citation{
				{URL: "https://www.molecule.to/ip-nft", Title: "IP-NFT"},
				{URL: "https://blog.example.com/ipnft", Title: "Blog"},
			},
		}}
		router := newRouter(t, ret, llm, searcher)

		result, err := router.GenerateAnswer(ctx, "When were IP-NFTs introduced?", nil)
		require.NoError(t, err)
		assert.Equal(t, "According to molecule.to, IP-NFTs...", result.Answer)
		assert.True(t, result.UsedWebSearch)
		assert.Equal(t, answer.OutcomeWebAnswer, result.Outcome)
		require.Len(t, result.TrustedSources, 1)
		assert.Equal(t, "molecule.to", result.TrustedSources[0].Domain)
		assert.Equal(t, 3, result.Context.Len())
	})

	t.Run("Should refuse out of scope queries without a generation call", func(t *testing.T) {
		ret := &stubRetriever{bundle: &knowledge.ContextBundle{}}
		llm := newScriptedLLM("INSUFFICIENT_AND_IRRELEVANT")
		searcher := &stubWebSearcher{}
		router := newRouter(t, ret, llm, searcher)

		result, err := router.GenerateAnswer(ctx, "What's the weather today?", nil)
		require.NoError(t, err)
		assert.Equal(t, answer.OutOfScopeMessage, result.Answer)
		assert.False(t, result.UsedWebSearch)
		assert.Equal(t, answer.OutcomeOutOfScope, result.Outcome)
		assert.Len(t, llm.Requests(), 1)
		assert.Zero(t, searcher.calls)
	})

	t.Run("Should treat unparseable judge output as out of scope", func(t *testing.T) {
		ret := &stubRetriever{bundle: threePassageBundle()}
		llm := newScriptedLLM("I think the context is probably fine.")
		router := newRouter(t, ret, llm, &stubWebSearcher{})

		result, err := router.GenerateAnswer(ctx, "What is Molecule?", nil)
		require.NoError(t, err)
		assert.Equal(t, answer.VerdictInsufficientAndIrrelevant, result.Verdict)
		assert.Equal(t, answer.OutOfScopeMessage, result.Answer)
		assert.Len(t, llm.Requests(), 1)
	})

	t.Run("Should drop malformed history before the local call", func(t *testing.T) {
		ret := &stubRetriever{bundle: threePassageBundle()}
		llm := newScriptedLLM("SUFFICIENT", "Answer")
		router := newRouter(t, ret, llm, &stubWebSearcher{})
		history := answer.HistoryFromMaps([]map[string]any{
			{"role": "user"},
			{"role": "user", "content": "hi"},
		})

		result, err := router.GenerateAnswer(ctx, "What is Molecule?", history)
		require.NoError(t, err)
		reqs := llm.Requests()
		require.Len(t, reqs, 2)
		assert.Equal(t, []llmadapter.Message{
			{Role: "user", Content: "hi"},
			{Role: "user", Content: "What is Molecule?"},
		}, reqs[1].Messages)
		assert.Len(t, result.History, 3)
		assert.Len(t, history, 2)
	})

	t.Run("Should propagate retrieval failures without calling any model", func(t *testing.T) {
		ret := &stubRetriever{err: errors.New("connection refused")}
		llm := newScriptedLLM()
		router := newRouter(t, ret, llm, &stubWebSearcher{})

		_, err := router.GenerateAnswer(ctx, "What is Molecule?", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, answer.ErrRetrieval)
		assert.True(t, core.IsCode(err, answer.CodeRetrieval))
		assert.Empty(t, llm.Requests())
	})

	t.Run("Should propagate judge failures as generation errors", func(t *testing.T) {
		ret := &stubRetriever{bundle: threePassageBundle()}
		llm := newScriptedLLM().thenFail(errors.New("rate limited"))
		router := newRouter(t, ret, llm, &stubWebSearcher{})

		_, err := router.GenerateAnswer(ctx, "What is Molecule?", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, answer.ErrGeneration)
		assert.True(t, core.IsCode(err, answer.CodeGeneration))
	})

	t.Run("Should propagate local answer failures", func(t *testing.T) {
		ret := &stubRetriever{bundle: threePassageBundle()}
		llm := newScriptedLLM("SUFFICIENT").thenFail(errors.New("timeout"))
		router := newRouter(t, ret, llm, &stubWebSearcher{})

		result, err := router.GenerateAnswer(ctx, "What is Molecule?", nil)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, answer.ErrGeneration)
	})

	t.Run("Should propagate web search failures", func(t *testing.T) {
		ret := &stubRetriever{bundle: &knowledge.ContextBundle{}}
		llm := newScriptedLLM("INSUFFICIENT_BUT_RELEVANT")
		searcher := &stubWebSearcher{err: errors.New("502 bad gateway")}
		router := newRouter(t, ret, llm, searcher)

		_, err := router.GenerateAnswer(ctx, "Who founded VitaDAO?", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, answer.ErrGeneration)
	})

	t.Run("Should reject an empty query", func(t *testing.T) {
		ret := &stubRetriever{bundle: &knowledge.ContextBundle{}}
		router := newRouter(t, ret, newScriptedLLM(), &stubWebSearcher{})

		_, err := router.GenerateAnswer(ctx, "   ", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, answer.ErrEmptyQuery)
		assert.Zero(t, ret.calls)
	})
}

func TestRouter_Retrieve(t *testing.T) {
	t.Run("Should return an empty bundle when the retriever returns nil", func(t *testing.T) {
		router := newRouter(t, &stubRetriever{}, newScriptedLLM(), &stubWebSearcher{})
		bundle, err := router.Retrieve(context.Background(), "What is Molecule?", 0)
		require.NoError(t, err)
		assert.Zero(t, bundle.Len())
	})
}

func TestNewRouter(t *testing.T) {
	t.Run("Should reject missing collaborators", func(t *testing.T) {
		_, err := answer.NewRouter(nil, newScriptedLLM(), &stubWebSearcher{}, builtinPrompts(t), answer.DefaultConfig())
		require.Error(t, err)
		_, err = answer.NewRouter(&stubRetriever{}, newScriptedLLM(), nil, builtinPrompts(t), answer.DefaultConfig())
		require.Error(t, err)
	})

	t.Run("Should reject an invalid allow-list", func(t *testing.T) {
		cfg := answer.DefaultConfig()
		cfg.TrustedDomains = nil
		_, err := answer.NewRouter(&stubRetriever{}, newScriptedLLM(), &stubWebSearcher{}, builtinPrompts(t), cfg)
		require.Error(t, err)
	})
}
