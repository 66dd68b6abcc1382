package prompt

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/compozy/molrag/pkg/tplengine"
	"gopkg.in/yaml.v3"
)

//go:embed templates/prompts.yaml
var builtinFS embed.FS

// Built-in prompt names.
const (
	LocalAnswer   = "local-answer"
	RelevanceEval = "relevance-eval"
	WebSearch     = "web-search"
	TrustedFilter = "trusted-filter"
)

// Required lists the prompts every store must provide.
var Required = []string{LocalAnswer, RelevanceEval, WebSearch, TrustedFilter}

// ErrNotFound is returned by Get for unknown prompt names.
var ErrNotFound = errors.New("prompt not found")

// Template is a named prompt ready to be compiled with variables.
type Template struct {
	name   string
	text   string
	engine *tplengine.TemplateEngine
}

func (t *Template) Name() string { return t.name }

// Text returns the raw template body.
func (t *Template) Text() string { return t.text }

// Compile renders the template. A variable referenced by the template but
// absent from vars is an error.
func (t *Template) Compile(vars map[string]any) (string, error) {
	out, err := t.engine.Render(t.name, vars)
	if err != nil {
		return "", fmt.Errorf("compile prompt %q: %w", t.name, err)
	}
	return out, nil
}

// Store holds parsed prompt templates keyed by name.
type Store struct {
	engine    *tplengine.TemplateEngine
	templates map[string]*Template
}

// NewStore loads the built-in prompts and applies overridePath on top when set.
func NewStore(overridePath string) (*Store, error) {
	raw, err := builtinFS.ReadFile("templates/prompts.yaml")
	if err != nil {
		return nil, fmt.Errorf("read built-in prompts: %w", err)
	}
	entries, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode built-in prompts: %w", err)
	}
	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("read prompt overrides: %w", err)
		}
		overrides, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode prompt overrides %s: %w", overridePath, err)
		}
		for name, text := range overrides {
			entries[name] = text
		}
	}
	return NewStoreFromMap(entries)
}

// NewStoreFromMap builds a store from in-memory template bodies.
func NewStoreFromMap(entries map[string]string) (*Store, error) {
	s := &Store{
		engine:    tplengine.NewEngine(),
		templates: make(map[string]*Template, len(entries)),
	}
	for name, text := range entries {
		if err := s.engine.AddTemplate(name, text); err != nil {
			return nil, err
		}
		s.templates[name] = &Template{name: name, text: text, engine: s.engine}
	}
	return s, nil
}

func decode(data []byte) (map[string]string, error) {
	var entries map[string]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return entries, nil
}

// Get returns the template registered under name.
func (s *Store) Get(name string) (*Template, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return tmpl, nil
}

// Names lists the registered prompt names.
func (s *Store) Names() []string {
	return s.engine.Names()
}

// Validate checks that every name in required is registered.
func (s *Store) Validate(required ...string) error {
	var missing []string
	for _, name := range required {
		if !s.engine.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, strings.Join(missing, ", "))
	}
	return nil
}
