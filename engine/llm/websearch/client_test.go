package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	llmadapter "github.com/compozy/molrag/engine/llm/adapter"
	"github.com/compozy/molrag/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionWithCitations = `{
  "model": "gpt-4o-search-preview-2025-03-11",
  "choices": [{
    "message": {
      "role": "assistant",
      "content": "IP-NFTs tokenize research agreements [molecule.to].",
      "annotations": [
        {"type": "url_citation", "url_citation": {
          "url": "https://www.molecule.to/ip-nft", "title": "IP-NFT", "start_index": 0, "end_index": 41}},
        {"type": "file_citation", "file_citation": {"file_id": "f"}},
        {"type": "url_citation", "url_citation": {
          "url": "https://example.com/blog", "title": "Blog", "start_index": 10, "end_index": 20}}
      ]
    }
  }]
}`

func newTestServer(t *testing.T, status int, body string, inspect func(*http.Request, map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(raw, &payload))
		if inspect != nil {
			inspect(r, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_CompleteWithWebSearch(t *testing.T) {
	t.Run("Should send web_search_options and decode url citations", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, completionWithCitations, func(r *http.Request, payload map[string]any) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			assert.Equal(t, "gpt-4o-search-preview", payload["model"])
			assert.Equal(t, map[string]any{}, payload["web_search_options"])
			msgs := payload["messages"].([]any)
			require.Len(t, msgs, 2)
			assert.Equal(t, "assistant", msgs[0].(map[string]any)["role"])
			assert.NotContains(t, payload, "temperature")
		})
		client := New(Config{BaseURL: srv.URL, APIKey: "sk-test"})

		res, err := client.CompleteWithWebSearch(context.Background(), []llmadapter.Message{
			{Role: llmadapter.RoleAssistant, Content: "Hello!"},
			{Role: llmadapter.RoleUser, Content: "What are IP-NFTs?"},
		}, "")
		require.NoError(t, err)
		assert.Equal(t, "IP-NFTs tokenize research agreements [molecule.to].", res.Text)
		assert.Equal(t, "gpt-4o-search-preview-2025-03-11", res.Model)
		require.Len(t, res.Citations, 2)
		assert.Equal(t, Citation{URL: "https://www.molecule.to/ip-nft", Title: "IP-NFT", StartIndex: 0, EndIndex: 41}, res.Citations[0])
		assert.Equal(t, "https://example.com/blog", res.Citations[1].URL)
	})

	t.Run("Should return no citations when annotations are absent", func(t *testing.T) {
		body := `{"choices":[{"message":{"role":"assistant","content":"plain"}}]}`
		srv := newTestServer(t, http.StatusOK, body, nil)
		res, err := New(Config{BaseURL: srv.URL}).CompleteWithWebSearch(context.Background(),
			[]llmadapter.Message{{Role: llmadapter.RoleUser, Content: "q"}}, "custom-model")
		require.NoError(t, err)
		assert.Equal(t, "plain", res.Text)
		assert.Empty(t, res.Citations)
		assert.Equal(t, "custom-model", res.Model)
	})

	t.Run("Should surface provider errors with status", func(t *testing.T) {
		body := `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`
		srv := newTestServer(t, http.StatusUnauthorized, body, nil)
		_, err := New(Config{BaseURL: srv.URL}).CompleteWithWebSearch(context.Background(),
			[]llmadapter.Message{{Role: llmadapter.RoleUser, Content: "q"}}, "")
		require.Error(t, err)
		var llmErr *llmadapter.Error
		require.ErrorAs(t, err, &llmErr)
		assert.Equal(t, http.StatusUnauthorized, llmErr.StatusCode)
		assert.Contains(t, llmErr.Message, "Incorrect API key")
	})

	t.Run("Should fail on a response without choices", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, `{"choices":[]}`, nil)
		_, err := New(Config{BaseURL: srv.URL}).CompleteWithWebSearch(context.Background(),
			[]llmadapter.Message{{Role: llmadapter.RoleUser, Content: "q"}}, "")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("Should fail on transport errors without retrying", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()
		_, err := New(Config{BaseURL: srv.URL}).CompleteWithWebSearch(context.Background(),
			[]llmadapter.Message{{Role: llmadapter.RoleUser, Content: "q"}}, "")
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("Should mask credentials in debug dumps and keep them on the wire", func(t *testing.T) {
		srv := newTestServer(t, http.StatusOK, completionWithCitations, func(r *http.Request, _ map[string]any) {
			assert.Equal(t, "Bearer sk-secret-1234567890abcdef", r.Header.Get("Authorization"))
			assert.Equal(t, "org-molecule", r.Header.Get("OpenAI-Organization"))
		})
		var buf bytes.Buffer
		log := logger.NewLogger(&logger.Config{Level: logger.DebugLevel, Output: &buf})
		client := New(Config{
			BaseURL:      srv.URL,
			APIKey:       "sk-secret-1234567890abcdef",
			Organization: "org-molecule",
			Debug:        true,
			Logger:       log,
		})
		_, err := client.CompleteWithWebSearch(context.Background(),
			[]llmadapter.Message{{Role: llmadapter.RoleUser, Content: "q"}}, "")
		require.NoError(t, err)
		out := buf.String()
		assert.Contains(t, out, "REQUEST")
		assert.Contains(t, out, "[REDACTED]")
		assert.NotContains(t, out, "sk-secret-1234567890abcdef")
		assert.NotContains(t, out, "org-molecule")
	})

	t.Run("Should reject empty message lists", func(t *testing.T) {
		_, err := New(Config{}).CompleteWithWebSearch(context.Background(), nil, "")
		require.Error(t, err)
	})
}

func TestParseCompletion(t *testing.T) {
	t.Run("Should reject invalid JSON", func(t *testing.T) {
		_, err := parseCompletion([]byte("not json"), "m")
		require.Error(t, err)
	})
}
