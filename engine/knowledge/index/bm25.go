package index

import (
	"math"
	"sort"

	"github.com/compozy/molrag/engine/knowledge/embedder"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type bm25Doc struct {
	terms  map[string]int
	length int
}

// bm25Index is the lexical leg of the local index. Callers synchronize access.
type bm25Index struct {
	docs     map[string]bm25Doc
	df       map[string]int
	totalLen int
}

func newBM25Index() *bm25Index {
	return &bm25Index{docs: make(map[string]bm25Doc), df: make(map[string]int)}
}

func (x *bm25Index) put(id, text string) {
	x.remove(id)
	tokens := embedder.Tokenize(text)
	doc := bm25Doc{terms: make(map[string]int, len(tokens)), length: len(tokens)}
	for _, t := range tokens {
		doc.terms[t]++
	}
	for t := range doc.terms {
		x.df[t]++
	}
	x.docs[id] = doc
	x.totalLen += doc.length
}

func (x *bm25Index) remove(id string) {
	doc, ok := x.docs[id]
	if !ok {
		return
	}
	for t := range doc.terms {
		if x.df[t] <= 1 {
			delete(x.df, t)
			continue
		}
		x.df[t]--
	}
	x.totalLen -= doc.length
	delete(x.docs, id)
}

type lexicalScore struct {
	id    string
	score float64
}

// search returns up to n documents sharing at least one term with query.
func (x *bm25Index) search(query string, n int) []lexicalScore {
	if len(x.docs) == 0 || n <= 0 {
		return nil
	}
	terms := uniqueTerms(embedder.Tokenize(query))
	if len(terms) == 0 {
		return nil
	}
	total := float64(len(x.docs))
	avgLen := float64(x.totalLen) / total
	if avgLen == 0 {
		avgLen = 1
	}
	results := make([]lexicalScore, 0)
	for id, doc := range x.docs {
		var score float64
		for _, t := range terms {
			tf := float64(doc.terms[t])
			if tf == 0 {
				continue
			}
			df := float64(x.df[t])
			idf := math.Log(1 + (total-df+0.5)/(df+0.5))
			norm := tf + bm25K1*(1-bm25B+bm25B*float64(doc.length)/avgLen)
			score += idf * tf * (bm25K1 + 1) / norm
		}
		if score > 0 {
			results = append(results, lexicalScore{id: id, score: score})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return results[i].id < results[j].id
		}
		return results[i].score > results[j].score
	})
	if len(results) > n {
		results = results[:n]
	}
	return results
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
