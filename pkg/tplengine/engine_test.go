package tplengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateEngine_Render(t *testing.T) {
	t.Run("Should render registered templates with sprig helpers", func(t *testing.T) {
		e := NewEngine()
		require.NoError(t, e.AddTemplate("greet", "Hello {{ .name | upper }}"))
		out, err := e.Render("greet", map[string]any{"name": "vitadao"})
		require.NoError(t, err)
		assert.Equal(t, "Hello VITADAO", out)
	})

	t.Run("Should fail on missing keys", func(t *testing.T) {
		e := NewEngine()
		require.NoError(t, e.AddTemplate("ctx", "{{ .context }}"))
		_, err := e.Render("ctx", map[string]any{})
		require.Error(t, err)
	})

	t.Run("Should fail on unknown templates", func(t *testing.T) {
		_, err := NewEngine().Render("absent", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "template not found")
	})

	t.Run("Should not evaluate template markers inside values", func(t *testing.T) {
		e := NewEngine()
		require.NoError(t, e.AddTemplate("q", "Q: {{ .query }}"))
		out, err := e.Render("q", map[string]any{"query": "{{ .secret }}"})
		require.NoError(t, err)
		assert.Equal(t, "Q: {{ .secret }}", out)
	})

	t.Run("Should replace a template registered twice", func(t *testing.T) {
		e := NewEngine()
		require.NoError(t, e.AddTemplate("t", "first {{ .v }}"))
		require.NoError(t, e.AddTemplate("t", "second {{ .v }}"))
		out, err := e.Render("t", map[string]any{"v": 1})
		require.NoError(t, err)
		assert.Equal(t, "second 1", out)
	})

	t.Run("Should reject invalid template syntax", func(t *testing.T) {
		require.Error(t, NewEngine().AddTemplate("bad", "{{ .open "))
	})
}

func TestTemplateEngine_Names(t *testing.T) {
	t.Run("Should list templates sorted", func(t *testing.T) {
		e := NewEngine()
		require.NoError(t, e.AddTemplate("b", "b"))
		require.NoError(t, e.AddTemplate("a", "a"))
		assert.Equal(t, []string{"a", "b"}, e.Names())
		assert.True(t, e.Has("a"))
		assert.False(t, e.Has("c"))
	})
}
