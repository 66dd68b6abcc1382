package knowledge

import (
	"strings"

	"github.com/compozy/molrag/engine/core"
)

// Metadata keys read from indexed documents.
const (
	MetadataTitle     = "title"
	MetadataPageTitle = "page_title"
	MetadataURL       = "url"
	MetadataSource    = "source"
)

// Document is a unit of text stored in a hybrid index.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Passage is a ranked document returned by the retriever.
type Passage struct {
	ID       string
	Text     string
	Title    string
	URL      string
	Source   string
	Rank     int
	Score    float64
	Metadata map[string]any
}

// ContextBundle pairs the rendered context handed to the models with the
// passages it was built from, in rank order.
type ContextBundle struct {
	Context  string
	Passages []Passage
}

// NewPassage lifts provenance fields out of metadata. Rank is 1-based.
func NewPassage(id, text string, metadata map[string]any, rank int, score float64) Passage {
	title := strings.TrimSpace(core.StringValue(metadata, MetadataTitle))
	if title == "" {
		title = strings.TrimSpace(core.StringValue(metadata, MetadataPageTitle))
	}
	return Passage{
		ID:       id,
		Text:     text,
		Title:    title,
		URL:      strings.TrimSpace(core.StringValue(metadata, MetadataURL)),
		Source:   strings.TrimSpace(core.StringValue(metadata, MetadataSource)),
		Rank:     rank,
		Score:    score,
		Metadata: core.CloneMap(metadata),
	}
}

// Len returns the number of passages in the bundle.
func (b *ContextBundle) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Passages)
}

// Clone returns a copy that shares no slices or maps with b.
func (b *ContextBundle) Clone() ContextBundle {
	if b == nil {
		return ContextBundle{}
	}
	out := ContextBundle{Context: b.Context}
	if b.Passages != nil {
		out.Passages = make([]Passage, len(b.Passages))
		for i := range b.Passages {
			p := b.Passages[i]
			p.Metadata = core.CloneMap(p.Metadata)
			out.Passages[i] = p
		}
	}
	return out
}
