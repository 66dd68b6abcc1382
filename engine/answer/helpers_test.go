package answer_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/compozy/molrag/engine/answer"
	"github.com/compozy/molrag/engine/knowledge"
	"github.com/compozy/molrag/engine/knowledge/retriever"
	llmadapter "github.com/compozy/molrag/engine/llm/adapter"
	"github.com/compozy/molrag/engine/llm/websearch"
	"github.com/compozy/molrag/engine/prompt"
)

type stubRetriever struct {
	bundle *knowledge.ContextBundle
	err    error
	calls  int
	last   string
}

func (s *stubRetriever) Retrieve(_ context.Context, query string, _ int) (*knowledge.ContextBundle, error) {
	s.calls++
	s.last = query
	if s.err != nil {
		return nil, s.err
	}
	return s.bundle, nil
}

type scriptedReply struct {
	content string
	err     error
}

// scriptedLLM answers calls in order and records every request.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests []*llmadapter.LLMRequest
}

func newScriptedLLM(replies ...string) *scriptedLLM {
	s := &scriptedLLM{}
	for _, r := range replies {
		s.replies = append(s.replies, scriptedReply{content: r})
	}
	return s
}

func (s *scriptedLLM) thenFail(err error) *scriptedLLM {
	s.replies = append(s.replies, scriptedReply{err: err})
	return s
}

func (s *scriptedLLM) GenerateContent(_ context.Context, req *llmadapter.LLMRequest) (*llmadapter.LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	if idx >= len(s.replies) {
		return nil, fmt.Errorf("unexpected call %d", idx+1)
	}
	reply := s.replies[idx]
	if reply.err != nil {
		return nil, reply.err
	}
	return &llmadapter.LLMResponse{Content: reply.content, Model: req.Options.Model}, nil
}

func (s *scriptedLLM) Requests() []*llmadapter.LLMRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*llmadapter.LLMRequest(nil), s.requests...)
}

type stubWebSearcher struct {
	result   *websearch.Result
	err      error
	calls    int
	model    string
	messages []llmadapter.Message
}

func (s *stubWebSearcher) CompleteWithWebSearch(
	_ context.Context,
	messages []llmadapter.Message,
	model string,
) (*websearch.Result, error) {
	s.calls++
	s.model = model
	s.messages = append([]llmadapter.Message(nil), messages...)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func builtinPrompts(t *testing.T) *prompt.Store {
	t.Helper()
	store, err := prompt.NewStore("")
	require.NoError(t, err)
	return store
}

func threePassageBundle() *knowledge.ContextBundle {
	passages := []knowledge.Passage{
		knowledge.NewPassage("p1", "Molecule is a platform for decentralized biotech research funding.",
			map[string]any{"title": "About Molecule", "url": "https://molecule.to/about"}, 1, 0.9),
		knowledge.NewPassage("p2", "IP-NFTs tokenize intellectual property and research agreements.",
			map[string]any{"title": "IP-NFTs", "url": "https://molecule.to/ip-nft"}, 2, 0.8),
		knowledge.NewPassage("p3", "BioDAOs are communities that fund early stage science.",
			map[string]any{"title": "BioDAOs"}, 3, 0.7),
	}
	return &knowledge.ContextBundle{Context: retriever.RenderContext(passages), Passages: passages}
}

func newRouter(
	t *testing.T,
	ret answer.Retriever,
	llm answer.Completer,
	searcher answer.WebSearcher,
) *answer.Router {
	t.Helper()
	router, err := answer.NewRouter(ret, llm, searcher, builtinPrompts(t), answer.DefaultConfig())
	require.NoError(t, err)
	return router
}
