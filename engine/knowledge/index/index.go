package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/compozy/molrag/engine/knowledge/embedder"
)

// Provider enumerates supported hybrid index backends.
type Provider string

const (
	ProviderPGVector Provider = "pgvector"
	// ProviderLocal keeps the corpus in an in-process chromem collection.
	ProviderLocal Provider = "local"
)

const (
	DefaultRRFK                = 60
	DefaultCandidateMultiplier = 3
)

// Hit is one ranked search result.
type Hit struct {
	ID       string
	Text     string
	Metadata map[string]any
	Score    float64
}

// Searcher runs a hybrid (lexical + vector) query and returns at most k hits,
// best first.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
}

// Index is a Searcher bound to a backend connection.
type Index interface {
	Searcher
	Provider() Provider
	Close(ctx context.Context) error
}

// Config captures connection and ranking settings for an index.
type Config struct {
	Provider            Provider
	DSN                 string
	Table               string
	TextSearch          string
	Dimension           int
	MaxConnections      int32
	PersistPath         string
	Collection          string
	RRFK                int
	CandidateMultiplier int
}

func (c *Config) rrfK() int {
	if c.RRFK <= 0 {
		return DefaultRRFK
	}
	return c.RRFK
}

func (c *Config) candidates(k int) int {
	m := c.CandidateMultiplier
	if m <= 0 {
		m = DefaultCandidateMultiplier
	}
	return k * m
}

// New opens the index selected by cfg.Provider.
func New(ctx context.Context, cfg *Config, emb embedder.Embedder) (Index, error) {
	if cfg == nil {
		return nil, errors.New("index config is required")
	}
	if emb == nil {
		return nil, errors.New("index embedder is required")
	}
	switch Provider(strings.ToLower(string(cfg.Provider))) {
	case ProviderPGVector:
		return NewPGVector(ctx, cfg, emb)
	case ProviderLocal, "":
		return NewLocal(ctx, cfg, emb)
	default:
		return nil, fmt.Errorf("index: provider %q is not supported", cfg.Provider)
	}
}
