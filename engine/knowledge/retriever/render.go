package retriever

import (
	"strings"

	"github.com/compozy/molrag/engine/knowledge"
)

// RenderPassage formats one passage as a <document> block. Empty title,
// source and URL lines are omitted.
func RenderPassage(p *knowledge.Passage) string {
	var b strings.Builder
	b.WriteString("<document>")
	if p.Title != "" {
		b.WriteString("\nTitle: ")
		b.WriteString(p.Title)
	}
	if p.Source != "" {
		b.WriteString("\nSource: ")
		b.WriteString(p.Source)
	}
	if p.URL != "" {
		b.WriteString("\nURL: ")
		b.WriteString(p.URL)
	}
	b.WriteString("\nContent: ")
	b.WriteString(p.Text)
	b.WriteString("\n</document>\n")
	return b.String()
}

// RenderContext joins rendered passages with blank lines, preserving order.
func RenderContext(passages []knowledge.Passage) string {
	blocks := make([]string, len(passages))
	for i := range passages {
		blocks[i] = RenderPassage(&passages[i])
	}
	return strings.Join(blocks, "\n\n")
}
