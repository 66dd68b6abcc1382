package retriever

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

type TokenEstimator interface {
	EstimateTokens(ctx context.Context, text string) int
}

type runeEstimator struct{}

func (r runeEstimator) EstimateTokens(_ context.Context, text string) int {
	count := len([]rune(text))
	if count == 0 {
		return 0
	}
	tokens := count / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// RuneEstimator approximates four characters per token.
func RuneEstimator() TokenEstimator {
	return runeEstimator{}
}

type tiktokenEstimator struct {
	tke *tiktoken.Tiktoken
}

// NewTiktokenEstimator counts tokens with the encoding of model, falling back
// to cl100k_base for unknown models.
func NewTiktokenEstimator(model string) (TokenEstimator, error) {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tke, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding %q: %w", defaultEncoding, err)
		}
	}
	return &tiktokenEstimator{tke: tke}, nil
}

func (t *tiktokenEstimator) EstimateTokens(_ context.Context, text string) int {
	return len(t.tke.Encode(text, nil, nil))
}
