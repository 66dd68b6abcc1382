package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	llmadapter "github.com/compozy/molrag/engine/llm/adapter"
	"github.com/compozy/molrag/pkg/logger"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the OpenAI compatible endpoint root.
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the search-capable chat model used when none is configured.
	DefaultModel = "gpt-4o-search-preview"

	completionsPath       = "/chat/completions"
	annotationURLCitation = "url_citation"
	providerName          = "openai"
)

// ErrEmptyResponse is returned when the provider answers without a choice.
var ErrEmptyResponse = errors.New("web search response has no choices")

// Citation is a URL citation annotation attached to the generated text.
// StartIndex and EndIndex delimit the cited span of the answer.
type Citation struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// Result is the free-form answer and its citations.
type Result struct {
	Text      string
	Citations []Citation
	Model     string
}

// Config configures the HTTP client.
type Config struct {
	BaseURL      string
	APIKey       string
	Organization string
	Model        string
	Timeout      time.Duration
	// Debug dumps requests and responses through Logger with credentials masked.
	Debug  bool
	Logger logger.Logger
}

// Client calls a chat completions endpoint with web_search_options enabled.
type Client struct {
	http  *resty.Client
	model string
}

// New builds a client. Requests are never retried.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0).
		SetLogger(newRestyLogger(cfg.Logger)).
		OnRequestLog(maskCredentials).
		SetDebug(cfg.Debug)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	if cfg.Organization != "" {
		client.SetHeader("OpenAI-Organization", cfg.Organization)
	}
	return &Client{http: client, model: model}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string         `json:"model"`
	Messages         []chatMessage  `json:"messages"`
	WebSearchOptions map[string]any `json:"web_search_options"`
}

// CompleteWithWebSearch sends messages to model (or the client default) and
// returns the answer with its URL citations in response order.
func (c *Client) CompleteWithWebSearch(
	ctx context.Context,
	messages []llmadapter.Message,
	model string,
) (*Result, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("web search requires at least one message")
	}
	if err := llmadapter.ValidateMessages(messages); err != nil {
		return nil, err
	}
	if model == "" {
		model = c.model
	}
	body := chatRequest{
		Model:            model,
		Messages:         make([]chatMessage, 0, len(messages)),
		WebSearchOptions: map[string]any{},
	}
	for _, m := range messages {
		body.Messages = append(body.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(completionsPath)
	if err != nil {
		if parsed := llmadapter.NewErrorParser(providerName).ParseError(err); parsed != nil {
			return nil, parsed
		}
		return nil, fmt.Errorf("web search request failed: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}
	return parseCompletion(resp.Body(), model)
}

func statusError(resp *resty.Response) error {
	msg := gjson.GetBytes(resp.Body(), "error.message").String()
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	if msg == "" {
		msg = resp.Status()
	}
	return llmadapter.NewError(resp.StatusCode(), msg, providerName, nil)
}

// parseCompletion extracts the first choice and its url_citation annotations.
func parseCompletion(raw []byte, model string) (*Result, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("web search response is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	message := doc.Get("choices.0.message")
	if !message.Exists() {
		return nil, ErrEmptyResponse
	}
	result := &Result{
		Text:      message.Get("content").String(),
		Citations: []Citation{},
		Model:     model,
	}
	if m := doc.Get("model").String(); m != "" {
		result.Model = m
	}
	var parseErr error
	message.Get("annotations").ForEach(func(_, annotation gjson.Result) bool {
		if annotation.Get("type").String() != annotationURLCitation {
			return true
		}
		raw := annotation.Get(annotationURLCitation)
		if !raw.Exists() {
			return true
		}
		var citation Citation
		if err := json.Unmarshal([]byte(raw.Raw), &citation); err != nil {
			parseErr = fmt.Errorf("decode url citation: %w", err)
			return false
		}
		result.Citations = append(result.Citations, citation)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return result, nil
}
