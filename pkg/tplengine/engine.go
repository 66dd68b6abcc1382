package tplengine

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateEngine renders named text templates with sprig helpers.
// Missing keys are errors so a renamed variable never silently renders as "<no value>".
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewEngine creates an empty engine.
func NewEngine() *TemplateEngine {
	return &TemplateEngine{templates: make(map[string]*template.Template)}
}

func newTemplate(name string) *template.Template {
	return template.New(name).Option("missingkey=error").Funcs(sprig.TxtFuncMap())
}

// AddTemplate parses and registers a template, replacing any previous one with the same name.
func (e *TemplateEngine) AddTemplate(name, text string) error {
	tmpl, err := newTemplate(name).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template %q: %w", name, err)
	}
	e.mu.Lock()
	e.templates[name] = tmpl
	e.mu.Unlock()
	return nil
}

// Has reports whether name was registered.
func (e *TemplateEngine) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.templates[name]
	return ok
}

// Names lists registered templates in lexical order.
func (e *TemplateEngine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.templates))
	for name := range e.templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Render renders a registered template by name.
func (e *TemplateEngine) Render(name string, vars map[string]any) (string, error) {
	e.mu.RLock()
	tmpl, ok := e.templates[name]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}
	return e.execute(tmpl, vars)
}

func (e *TemplateEngine) execute(tmpl *template.Template, vars map[string]any) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return buf.String(), nil
}
