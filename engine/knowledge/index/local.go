package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/compozy/molrag/engine/knowledge"
	"github.com/compozy/molrag/engine/knowledge/embedder"
	"github.com/compozy/molrag/pkg/logger"
)

const defaultCollection = "molecule"

// LocalIndex keeps vectors in a chromem collection and scores terms with BM25
// in memory. With a persist path the collection survives restarts and the
// lexical leg is rebuilt from it on open.
type LocalIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embedder.Embedder
	cfg        Config
	mu         sync.RWMutex
	docs       map[string]knowledge.Document
	lexical    *bm25Index
}

// NewLocal opens (or creates) the local collection.
func NewLocal(ctx context.Context, cfg *Config, emb embedder.Embedder) (*LocalIndex, error) {
	if cfg == nil {
		return nil, errors.New("index config is required")
	}
	if emb == nil {
		return nil, errors.New("index embedder is required")
	}
	name := strings.TrimSpace(cfg.Collection)
	if name == "" {
		name = defaultCollection
	}
	var (
		db  *chromem.DB
		err error
	)
	if path := strings.TrimSpace(cfg.PersistPath); path != "" {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("local index: open persistent db %q: %w", path, err)
		}
	} else {
		db = chromem.NewDB()
	}
	embed := func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := emb.EmbedDocuments(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vectors) != 1 {
			return nil, fmt.Errorf("local index: expected one embedding, got %d", len(vectors))
		}
		return vectors[0], nil
	}
	collection, err := db.GetOrCreateCollection(name, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("local index: collection %q: %w", name, err)
	}
	idx := &LocalIndex{
		db:         db,
		collection: collection,
		embedder:   emb,
		cfg:        *cfg,
		docs:       make(map[string]knowledge.Document),
		lexical:    newBM25Index(),
	}
	if err := idx.loadExisting(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (l *LocalIndex) Provider() Provider {
	return ProviderLocal
}

// Count returns the number of stored documents.
func (l *LocalIndex) Count() int {
	return l.collection.Count()
}

// Upsert embeds and stores documents, replacing any with the same ID.
func (l *LocalIndex) Upsert(ctx context.Context, docs []knowledge.Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i := range docs {
		if strings.TrimSpace(docs[i].ID) == "" {
			return fmt.Errorf("local index: document %d has no id", i)
		}
		if strings.TrimSpace(docs[i].Text) == "" {
			return fmt.Errorf("local index: document %q has no text", docs[i].ID)
		}
		texts[i] = docs[i].Text
	}
	vectors, err := l.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("local index: embed documents: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range docs {
		err := l.collection.AddDocument(ctx, chromem.Document{
			ID:        docs[i].ID,
			Content:   docs[i].Text,
			Embedding: vectors[i],
			Metadata:  toStringMetadata(docs[i].Metadata),
		})
		if err != nil {
			return fmt.Errorf("local index: add document %s: %w", docs[i].ID, err)
		}
		l.docs[docs[i].ID] = knowledge.Document{
			ID:       docs[i].ID,
			Text:     docs[i].Text,
			Metadata: fromStringMetadata(toStringMetadata(docs[i].Metadata)),
		}
		l.lexical.put(docs[i].ID, docs[i].Text)
	}
	return nil
}

// Search runs the vector and BM25 legs and fuses them with RRF.
func (l *LocalIndex) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil, nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := l.collection.Count()
	if total == 0 {
		return nil, nil
	}
	n := min(l.cfg.candidates(k), total)
	vector, err := l.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("local index: embed query: %w", err)
	}
	// chromem returns equal similarities in worker order, so the whole
	// collection is ranked here and cut after the tie-break.
	results, err := l.collection.QueryEmbedding(ctx, vector, total, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("local index: vector search: %w", err)
	}
	vectorHits := make([]Hit, 0, len(results))
	for _, r := range results {
		vectorHits = append(vectorHits, Hit{
			ID:       r.ID,
			Text:     r.Content,
			Metadata: fromStringMetadata(r.Metadata),
			Score:    float64(r.Similarity),
		})
	}
	sortHits(vectorHits)
	vectorHits = truncate(vectorHits, n)
	lexicalHits := make([]Hit, 0, n)
	for _, s := range l.lexical.search(query, n) {
		doc := l.docs[s.id]
		lexicalHits = append(lexicalHits, Hit{
			ID:       doc.ID,
			Text:     doc.Text,
			Metadata: fromStringMetadata(toStringMetadata(doc.Metadata)),
			Score:    s.score,
		})
	}
	knowledge.RecordLegHits(ctx, string(ProviderLocal), "vector", len(vectorHits))
	knowledge.RecordLegHits(ctx, string(ProviderLocal), "lexical", len(lexicalHits))
	logger.FromContext(ctx).Debug(
		"Local hybrid search executed",
		"vector_hits", len(vectorHits),
		"lexical_hits", len(lexicalHits),
	)
	return truncate(FuseRRF(l.cfg.rrfK(), lexicalHits, vectorHits), k), nil
}

func (l *LocalIndex) Close(_ context.Context) error {
	return nil
}

// loadExisting rebuilds the lexical leg from a persisted collection. chromem
// has no listing API, so every document is fetched with a unit seed vector.
func (l *LocalIndex) loadExisting(ctx context.Context) error {
	total := l.collection.Count()
	if total == 0 {
		return nil
	}
	if l.cfg.Dimension <= 0 {
		return errors.New("local index: dimension is required to load a persisted collection")
	}
	seed := make([]float32, l.cfg.Dimension)
	seed[0] = 1
	results, err := l.collection.QueryEmbedding(ctx, seed, total, nil, nil)
	if err != nil {
		return fmt.Errorf("local index: load persisted documents: %w", err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	for _, r := range results {
		l.docs[r.ID] = knowledge.Document{ID: r.ID, Text: r.Content, Metadata: fromStringMetadata(r.Metadata)}
		l.lexical.put(r.ID, r.Content)
	}
	logger.FromContext(ctx).Info("Local index loaded", "documents", total, "collection", l.collection.Name)
	return nil
}

func toStringMetadata(meta map[string]any) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		switch typed := v.(type) {
		case nil:
			continue
		case string:
			out[k] = typed
		case bool:
			out[k] = strconv.FormatBool(typed)
		case int:
			out[k] = strconv.Itoa(typed)
		case float64:
			out[k] = strconv.FormatFloat(typed, 'f', -1, 64)
		default:
			out[k] = fmt.Sprint(typed)
		}
	}
	return out
}

func fromStringMetadata(meta map[string]string) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
