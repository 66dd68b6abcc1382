package retriever_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/molrag/engine/knowledge"
	"github.com/compozy/molrag/engine/knowledge/embedder"
	"github.com/compozy/molrag/engine/knowledge/index"
	"github.com/compozy/molrag/engine/knowledge/retriever"
)

type stubSearcher struct {
	hits    []index.Hit
	err     error
	queries []string
	ks      []int
}

func (s *stubSearcher) Search(_ context.Context, query string, k int) ([]index.Hit, error) {
	s.queries = append(s.queries, query)
	s.ks = append(s.ks, k)
	if s.err != nil {
		return nil, s.err
	}
	return append([]index.Hit(nil), s.hits...), nil
}

type fixedEstimator struct {
	values []int
}

func (f *fixedEstimator) EstimateTokens(_ context.Context, _ string) int {
	if len(f.values) == 0 {
		return 0
	}
	val := f.values[0]
	f.values = f.values[1:]
	return val
}

func threeHits() []index.Hit {
	return []index.Hit{
		{
			ID: "a", Text: "DeSci is decentralized science.", Score: 0.03,
			Metadata: map[string]any{"page_title": "DeSci", "url": "https://molecule.to/desci", "source": "docs"},
		},
		{ID: "b", Text: "IP-NFTs.", Score: 0.02, Metadata: map[string]any{"title": "IP-NFT"}},
		{ID: "c", Text: "VitaDAO.", Score: 0.01},
	}
}

func TestService_Retrieve(t *testing.T) {
	t.Run("Should sanitize the query before searching", func(t *testing.T) {
		searcher := &stubSearcher{hits: threeHits()}
		svc, err := retriever.NewService(searcher)
		require.NoError(t, err)
		_, err = svc.Retrieve(context.Background(), "What's `DeSci`?", 8)
		require.NoError(t, err)
		assert.Equal(t, []string{"Whats DeSci?"}, searcher.queries)
	})

	t.Run("Should default k to eight", func(t *testing.T) {
		searcher := &stubSearcher{}
		svc, err := retriever.NewService(searcher)
		require.NoError(t, err)
		_, err = svc.Retrieve(context.Background(), "desci", 0)
		require.NoError(t, err)
		assert.Equal(t, []int{8}, searcher.ks)
	})

	t.Run("Should keep rank order and provenance", func(t *testing.T) {
		svc, err := retriever.NewService(&stubSearcher{hits: threeHits()})
		require.NoError(t, err)
		bundle, err := svc.Retrieve(context.Background(), "What is DeSci?", 8)
		require.NoError(t, err)
		require.Equal(t, 3, bundle.Len())
		for i, p := range bundle.Passages {
			assert.Equal(t, i+1, p.Rank)
		}
		first := bundle.Passages[0]
		assert.Equal(t, "DeSci", first.Title)
		assert.Equal(t, "https://molecule.to/desci", first.URL)
		assert.Equal(t, "docs", first.Source)
	})

	t.Run("Should render document blocks separated by blank lines", func(t *testing.T) {
		svc, err := retriever.NewService(&stubSearcher{hits: threeHits()[:2]})
		require.NoError(t, err)
		bundle, err := svc.Retrieve(context.Background(), "desci", 8)
		require.NoError(t, err)
		expected := "<document>\nTitle: DeSci\nSource: docs\nURL: https://molecule.to/desci\n" +
			"Content: DeSci is decentralized science.\n</document>\n" +
			"\n\n" +
			"<document>\nTitle: IP-NFT\nContent: IP-NFTs.\n</document>\n"
		assert.Equal(t, expected, bundle.Context)
	})

	t.Run("Should truncate to k when the index returns more", func(t *testing.T) {
		svc, err := retriever.NewService(&stubSearcher{hits: threeHits()})
		require.NoError(t, err)
		bundle, err := svc.Retrieve(context.Background(), "desci", 2)
		require.NoError(t, err)
		assert.Equal(t, 2, bundle.Len())
	})

	t.Run("Should drop lowest ranked passages beyond the token budget", func(t *testing.T) {
		estimator := &fixedEstimator{values: []int{50, 40, 30}}
		svc, err := retriever.NewService(
			&stubSearcher{hits: threeHits()},
			retriever.WithTokenBudget(estimator, 90),
		)
		require.NoError(t, err)
		bundle, err := svc.Retrieve(context.Background(), "desci", 8)
		require.NoError(t, err)
		require.Equal(t, 2, bundle.Len())
		assert.Equal(t, "a", bundle.Passages[0].ID)
		assert.Equal(t, "b", bundle.Passages[1].ID)
	})

	t.Run("Should skip the index when nothing is left after sanitization", func(t *testing.T) {
		searcher := &stubSearcher{hits: threeHits()}
		svc, err := retriever.NewService(searcher)
		require.NoError(t, err)
		bundle, err := svc.Retrieve(context.Background(), "'`'", 8)
		require.NoError(t, err)
		assert.Empty(t, searcher.queries)
		assert.Equal(t, 0, bundle.Len())
		assert.Empty(t, bundle.Context)
	})

	t.Run("Should return an empty bundle when the index has no hits", func(t *testing.T) {
		svc, err := retriever.NewService(&stubSearcher{})
		require.NoError(t, err)
		bundle, err := svc.Retrieve(context.Background(), "desci", 8)
		require.NoError(t, err)
		assert.Equal(t, &knowledge.ContextBundle{}, bundle)
	})

	t.Run("Should propagate index failures", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		svc, err := retriever.NewService(&stubSearcher{err: cause})
		require.NoError(t, err)
		bundle, err := svc.Retrieve(context.Background(), "desci", 8)
		assert.Nil(t, bundle)
		assert.ErrorIs(t, err, cause)
	})
}

func TestService_RetrieveIsDeterministic(t *testing.T) {
	t.Run("Should return the same rank order for an unchanged index", func(t *testing.T) {
		ctx := context.Background()
		emb, err := embedder.New(&embedder.Config{Provider: embedder.ProviderHash, Model: "fnv", Dimension: 64})
		require.NoError(t, err)
		idx, err := index.NewLocal(ctx, &index.Config{Dimension: 64}, emb)
		require.NoError(t, err)
		require.NoError(t, idx.Upsert(ctx, []knowledge.Document{
			{ID: "1", Text: "Molecule funds research through IP-NFTs", Metadata: map[string]any{"title": "Molecule"}},
			{ID: "2", Text: "BIO Protocol accelerates DeSci networks", Metadata: map[string]any{"title": "BIO"}},
			{ID: "3", Text: "VitaDAO funds longevity research", Metadata: map[string]any{"title": "VitaDAO"}},
			{ID: "4", Text: "Science funding is broken", Metadata: map[string]any{"title": "Funding"}},
		}))
		svc, err := retriever.NewService(idx)
		require.NoError(t, err)

		first, err := svc.Retrieve(ctx, "How does research funding work?", 8)
		require.NoError(t, err)
		second, err := svc.Retrieve(ctx, "How does research funding work?", 8)
		require.NoError(t, err)
		require.NotEmpty(t, first.Passages)
		assert.Equal(t, first.Context, second.Context)
		assert.Equal(t, first.Passages, second.Passages)
	})
}

func TestSanitizeQuery(t *testing.T) {
	t.Run("Should remove apostrophes and backticks only", func(t *testing.T) {
		assert.Equal(t, "Whats molecules IP-NFT?", retriever.SanitizeQuery("What's molecule's `IP-NFT`?"))
	})
}

func TestRuneEstimator(t *testing.T) {
	t.Run("Should estimate four runes per token with a floor of one", func(t *testing.T) {
		est := retriever.RuneEstimator()
		assert.Equal(t, 0, est.EstimateTokens(context.Background(), ""))
		assert.Equal(t, 1, est.EstimateTokens(context.Background(), "ab"))
		assert.Equal(t, 3, est.EstimateTokens(context.Background(), "abcdefghijkl"))
	})
}
