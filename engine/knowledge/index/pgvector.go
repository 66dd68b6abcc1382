package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/compozy/molrag/engine/knowledge"
	"github.com/compozy/molrag/engine/knowledge/embedder"
	"github.com/compozy/molrag/pkg/logger"
)

const (
	defaultTable      = "knowledge_passages"
	defaultTextSearch = "english"
)

// DBInterface is the subset of pgxpool.Pool used by the index, so tests can
// substitute pgxmock.
type DBInterface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// PGVectorIndex runs hybrid search against a postgres table with columns
// (id text, content text, metadata jsonb, embedding vector). The lexical leg
// ranks with ts_rank_cd over websearch_to_tsquery.
type PGVectorIndex struct {
	db         DBInterface
	embedder   embedder.Embedder
	cfg        Config
	tableIdent string
}

type passageRow struct {
	ID       string  `db:"id"`
	Content  string  `db:"content"`
	Metadata []byte  `db:"metadata"`
	Score    float64 `db:"score"`
}

// NewPGVector connects to postgres and verifies the connection.
func NewPGVector(ctx context.Context, cfg *Config, emb embedder.Embedder) (*PGVectorIndex, error) {
	if cfg == nil {
		return nil, errors.New("index config is required")
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("pgvector: dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector: parse dsn: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgvector: failed to connect to postgres: %w", err)
	}
	idx, err := NewPGVectorWithDB(pool, cfg, emb)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: ping: %w", err)
	}
	return idx, nil
}

// NewPGVectorWithDB builds the index on an existing connection.
func NewPGVectorWithDB(db DBInterface, cfg *Config, emb embedder.Embedder) (*PGVectorIndex, error) {
	if db == nil {
		return nil, errors.New("pgvector: database is required")
	}
	if cfg == nil {
		return nil, errors.New("index config is required")
	}
	if emb == nil {
		return nil, errors.New("index embedder is required")
	}
	c := *cfg
	if strings.TrimSpace(c.Table) == "" {
		c.Table = defaultTable
	}
	if strings.TrimSpace(c.TextSearch) == "" {
		c.TextSearch = defaultTextSearch
	}
	return &PGVectorIndex{
		db:         db,
		embedder:   emb,
		cfg:        c,
		tableIdent: pgx.Identifier{c.Table}.Sanitize(),
	}, nil
}

func (p *PGVectorIndex) Provider() Provider {
	return ProviderPGVector
}

// Search runs the lexical leg, then the vector leg, and fuses them.
func (p *PGVectorIndex) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil, nil
	}
	n := p.cfg.candidates(k)
	lexical, err := p.lexicalSearch(ctx, query, n)
	if err != nil {
		return nil, err
	}
	vector, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgvector: embed query: %w", err)
	}
	semantic, err := p.vectorSearch(ctx, vector, n)
	if err != nil {
		return nil, err
	}
	knowledge.RecordLegHits(ctx, string(ProviderPGVector), "lexical", len(lexical))
	knowledge.RecordLegHits(ctx, string(ProviderPGVector), "vector", len(semantic))
	logger.FromContext(ctx).Debug(
		"Postgres hybrid search executed",
		"table", p.cfg.Table,
		"vector_hits", len(semantic),
		"lexical_hits", len(lexical),
	)
	return truncate(FuseRRF(p.cfg.rrfK(), lexical, semantic), k), nil
}

func (p *PGVectorIndex) lexicalSearch(ctx context.Context, query string, n int) ([]Hit, error) {
	ts := p.cfg.TextSearch
	sql, args, err := squirrel.Select("id", "content", "metadata").
		Column(squirrel.Expr(
			"ts_rank_cd(to_tsvector(?::regconfig, content), websearch_to_tsquery(?::regconfig, ?)) AS score",
			ts, ts, query,
		)).
		From(p.tableIdent).
		Where(squirrel.Expr("to_tsvector(?::regconfig, content) @@ websearch_to_tsquery(?::regconfig, ?)", ts, ts, query)).
		OrderBy("score DESC", "id ASC").
		Limit(uint64(n)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgvector: build lexical query: %w", err)
	}
	var rows []passageRow
	if err := pgxscan.Select(ctx, p.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("pgvector: lexical search: %w", err)
	}
	return toHits(rows)
}

func (p *PGVectorIndex) vectorSearch(ctx context.Context, vector []float32, n int) ([]Hit, error) {
	if p.cfg.Dimension > 0 && len(vector) != p.cfg.Dimension {
		return nil, errors.New("pgvector: query dimension mismatch")
	}
	vec := pgvector.NewVector(vector)
	sql, args, err := squirrel.Select("id", "content", "metadata").
		Column(squirrel.Expr("1 - (embedding <=> ?) AS score", vec)).
		From(p.tableIdent).
		OrderByClause("embedding <=> ? ASC, id ASC", vec).
		Limit(uint64(n)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgvector: build vector query: %w", err)
	}
	var rows []passageRow
	if err := pgxscan.Select(ctx, p.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("pgvector: vector search: %w", err)
	}
	return toHits(rows)
}

func toHits(rows []passageRow) ([]Hit, error) {
	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		var meta map[string]any
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &meta); err != nil {
				return nil, fmt.Errorf("pgvector: decode metadata of %s: %w", row.ID, err)
			}
		}
		hits = append(hits, Hit{ID: row.ID, Text: row.Content, Metadata: meta, Score: row.Score})
	}
	return hits, nil
}

func (p *PGVectorIndex) Close(_ context.Context) error {
	p.db.Close()
	return nil
}
