package answer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/molrag/engine/answer"
	llmadapter "github.com/compozy/molrag/engine/llm/adapter"
	"github.com/compozy/molrag/engine/llm/websearch"
)

func newWebAnswerer(t *testing.T, searcher answer.WebSearcher, llm answer.Completer) *answer.WebAnswerer {
	t.Helper()
	policy, err := answer.NewTrustPolicy(answer.DefaultTrustedDomains)
	require.NoError(t, err)
	w, err := answer.NewWebAnswerer(searcher, llm, builtinPrompts(t), policy, answer.WebAnswererConfig{
		SearchModel:       "gpt-4o-search-preview",
		FilterModel:       "gpt-4o",
		FilterTemperature: 0.3,
	})
	require.NoError(t, err)
	return w
}

func TestWebAnswerer_AnswerWithWebSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return the refusal and skip the filter call when no citation is trusted", func(t *testing.T) {
		searcher := &stubWebSearcher{result: &websearch.Result{
			Text:      "Unverified claims.",
			Citations: []websearch.Citation{{URL: "https://example.com/a"}, {URL: "https://molecule.to.example.com/b"}},
		}}
		llm := newScriptedLLM()
		w := newWebAnswerer(t, searcher, llm)

		got, err := w.AnswerWithWebSearch(ctx, "What is VitaDAO?", nil)
		require.NoError(t, err)
		assert.Equal(t, answer.NoTrustedSourceMessage, got.Text)
		assert.False(t, got.Trusted())
		assert.Equal(t, 2, got.Citations)
		assert.Empty(t, llm.Requests())
	})

	t.Run("Should refuse when the search returns no citations at all", func(t *testing.T) {
		searcher := &stubWebSearcher{result: &websearch.Result{Text: "VitaDAO is a longevity collective."}}
		llm := newScriptedLLM()
		w := newWebAnswerer(t, searcher, llm)

		got, err := w.AnswerWithWebSearch(ctx, "What is VitaDAO?", nil)
		require.NoError(t, err)
		assert.Equal(t, answer.NoTrustedSourceMessage, got.Text)
		assert.Empty(t, llm.Requests())
	})

	t.Run("Should rewrite the draft from deduplicated trusted sources", func(t *testing.T) {
		searcher := &stubWebSearcher{result: &websearch.Result{
			Text: "VitaDAO funds longevity research. It was covered in the press.",
			Citations: []websearch.Citation{
				{URL: "https://www.vitadao.com/about", Title: "About VitaDAO", StartIndex: 0, EndIndex: 33},
				{URL: "https://press.example.org/vita", Title: "Press", StartIndex: 34, EndIndex: 62},
				{URL: "https://www.vitadao.com/about", Title: "About VitaDAO", StartIndex: 0, EndIndex: 12},
				{URL: "https://bio.xyz/biodaos", Title: "BioDAOs", StartIndex: 40, EndIndex: 50},
			},
		}}
		llm := newScriptedLLM("VitaDAO funds longevity research (vitadao.com).")
		w := newWebAnswerer(t, searcher, llm)

		history := []answer.ConversationTurn{
			{Role: "user", Content: "Hi"},
			{Role: "assistant"},
		}
		got, err := w.AnswerWithWebSearch(ctx, "What does VitaDAO do?", history)
		require.NoError(t, err)
		assert.Equal(t, "VitaDAO funds longevity research (vitadao.com).", got.Text)
		assert.True(t, got.Trusted())
		require.Len(t, got.TrustedSources, 2)
		assert.Len(t, got.TrustedSources[0].Spans, 2)
		assert.Equal(t, "bio.xyz", got.TrustedSources[1].Domain)

		require.Len(t, searcher.messages, 2)
		assert.Equal(t, llmadapter.Message{Role: "user", Content: "Hi"}, searcher.messages[0])
		assert.Equal(t, "user", searcher.messages[1].Role)
		assert.Contains(t, searcher.messages[1].Content, "What does VitaDAO do?")
		assert.Equal(t, "gpt-4o-search-preview", searcher.model)

		reqs := llm.Requests()
		require.Len(t, reqs, 1)
		filter := reqs[0]
		assert.Equal(t, "gpt-4o", filter.Options.Model)
		assert.InDelta(t, 0.3, filter.Options.Temperature, 1e-9)
		require.Len(t, filter.Messages, 1)
		body := filter.Messages[0].Content
		assert.Contains(t, body, "- About VitaDAO (https://www.vitadao.com/about)\n- BioDAOs (https://bio.xyz/biodaos)")
		assert.NotContains(t, body, "press.example.org")
		assert.Contains(t, body, "What does VitaDAO do?")
		assert.Contains(t, body, "VitaDAO funds longevity research. It was covered in the press.")
	})

	t.Run("Should surface filter failures as generation errors", func(t *testing.T) {
		searcher := &stubWebSearcher{result: &websearch.Result{
			Text:      "draft",
			Citations: []websearch.Citation{{URL: "https://molecule.xyz"}},
		}}
		llm := newScriptedLLM().thenFail(assert.AnError)
		w := newWebAnswerer(t, searcher, llm)

		_, err := w.AnswerWithWebSearch(ctx, "What is Molecule?", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, answer.ErrGeneration)
		assert.ErrorIs(t, err, assert.AnError)
	})
}
