package config

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensitiveString(t *testing.T) {
	t.Run("Should hide the key in formatted output but keep the raw value", func(t *testing.T) {
		key := SensitiveString("sk-proj-molrag")
		assert.Equal(t, "[REDACTED]", key.String())
		assert.Equal(t, "sk-proj-molrag", key.Value())
		assert.NotContains(t, fmt.Sprintf("%+v", OpenAIConfig{APIKey: key}), "sk-proj-molrag")
	})

	t.Run("Should leave an unset secret empty", func(t *testing.T) {
		var dsn SensitiveString
		assert.Empty(t, dsn.String())
		data, err := json.Marshal(dsn)
		require.NoError(t, err)
		assert.Equal(t, `""`, string(data))
	})

	t.Run("Should read the raw value back from JSON", func(t *testing.T) {
		var dsn SensitiveString
		require.NoError(t, json.Unmarshal([]byte(`"postgres://rag:pw@db/knowledge"`), &dsn))
		assert.Equal(t, "postgres://rag:pw@db/knowledge", dsn.Value())
	})
}

func TestConfig_MarshalRedactsSecrets(t *testing.T) {
	t.Run("Should redact the api key and index dsn of a loaded configuration", func(t *testing.T) {
		source := &mockSource{
			sourceType: SourceYAML,
			data: map[string]any{
				"index": map[string]any{"provider": "pgvector", "dsn": "postgres://rag:pw@db:5432/knowledge"},
			},
		}
		cfg, err := newLoader(envOf("OPENAI_API_KEY=sk-from-env")).Load(context.Background(), source)
		require.NoError(t, err)
		assert.Equal(t, "sk-from-env", cfg.OpenAI.APIKey.Value())
		assert.Equal(t, "postgres://rag:pw@db:5432/knowledge", cfg.Index.DSN.Value())

		data, err := json.Marshal(cfg)
		require.NoError(t, err)
		var out map[string]map[string]any
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, "[REDACTED]", out["OpenAI"]["APIKey"])
		assert.Equal(t, "[REDACTED]", out["Index"]["DSN"])
		assert.NotContains(t, string(data), "sk-from-env")
		assert.NotContains(t, string(data), "rag:pw")
	})
}

func TestSensitiveStringDecodeHook(t *testing.T) {
	target := reflect.TypeOf(SensitiveString(""))

	t.Run("Should convert strings and bytes into secrets", func(t *testing.T) {
		out, err := sensitiveStringDecodeHook(reflect.TypeOf(""), target, "sk-env")
		require.NoError(t, err)
		assert.Equal(t, SensitiveString("sk-env"), out)

		out, err = sensitiveStringDecodeHook(reflect.TypeOf([]byte(nil)), target, []byte("sk-yaml"))
		require.NoError(t, err)
		assert.Equal(t, SensitiveString("sk-yaml"), out)
	})

	t.Run("Should pass other targets through untouched", func(t *testing.T) {
		out, err := sensitiveStringDecodeHook(reflect.TypeOf(""), reflect.TypeOf(""), "gpt-4o")
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", out)
	})
}

func TestIsSensitivePath(t *testing.T) {
	t.Run("Should flag the credential paths only", func(t *testing.T) {
		assert.True(t, IsSensitivePath("openai.api_key"))
		assert.True(t, IsSensitivePath("index.dsn"))
		assert.False(t, IsSensitivePath("openai.base_url"))
		assert.False(t, IsSensitivePath("trust.allowed_domains"))
	})
}
