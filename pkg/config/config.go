package config

import (
	"context"
	"encoding/json"
	"time"
)

// Config is the root molrag configuration.
type Config struct {
	Runtime    RuntimeConfig    `koanf:"runtime"`
	OpenAI     OpenAIConfig     `koanf:"openai"`
	Models     ModelsConfig     `koanf:"models"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Index      IndexConfig      `koanf:"index"`
	Embedder   EmbedderConfig   `koanf:"embedder"`
	Trust      TrustConfig      `koanf:"trust"`
	Prompts    PromptsConfig    `koanf:"prompts"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
}

// RuntimeConfig contains process level settings.
type RuntimeConfig struct {
	LogLevel       string        `koanf:"log_level"       env:"MOLRAG_LOG_LEVEL"       validate:"oneof=debug info warn error disabled"`
	LogJSON        bool          `koanf:"log_json"        env:"MOLRAG_LOG_JSON"`
	RequestTimeout time.Duration `koanf:"request_timeout" env:"MOLRAG_REQUEST_TIMEOUT" validate:"min=0"`
}

// OpenAIConfig holds credentials for the chat completion provider.
type OpenAIConfig struct {
	APIKey  SensitiveString `koanf:"api_key"  env:"OPENAI_API_KEY"  sensitive:"true"`
	BaseURL string          `koanf:"base_url" env:"OPENAI_BASE_URL" validate:"omitempty,url"`
	OrgID   string          `koanf:"org_id"   env:"OPENAI_ORG_ID"`
}

// ModelsConfig selects the model and sampling settings of every generation call.
type ModelsConfig struct {
	Provider          string  `koanf:"provider"           env:"MOLRAG_LLM_PROVIDER"     validate:"oneof=openai ollama"`
	AnswerModel       string  `koanf:"answer_model"       env:"MOLRAG_ANSWER_MODEL"     validate:"required"`
	AnswerTemperature float64 `koanf:"answer_temperature"                               validate:"min=0,max=2"`
	JudgeModel        string  `koanf:"judge_model"        env:"MOLRAG_JUDGE_MODEL"      validate:"required"`
	JudgeTemperature  float64 `koanf:"judge_temperature"                                validate:"min=0,max=2"`
	JudgeMaxTokens    int     `koanf:"judge_max_tokens"                                 validate:"min=1"`
	WebSearchModel    string  `koanf:"web_search_model"   env:"MOLRAG_WEB_SEARCH_MODEL" validate:"required"`
	FilterModel       string  `koanf:"filter_model"       env:"MOLRAG_FILTER_MODEL"     validate:"required"`
	FilterTemperature float64 `koanf:"filter_temperature"                               validate:"min=0,max=2"`
	OllamaURL         string  `koanf:"ollama_url"         env:"OLLAMA_URL"              validate:"omitempty,url"`
}

// RetrievalConfig tunes the context retriever.
type RetrievalConfig struct {
	TopK                int    `koanf:"top_k"                env:"MOLRAG_RETRIEVAL_TOP_K" validate:"min=1,max=100"`
	MaxTokens           int    `koanf:"max_tokens"           env:"MOLRAG_RETRIEVAL_MAX_TOKENS" validate:"min=0"`
	TokenModel          string `koanf:"token_model"                                       validate:"required"`
	RRFK                int    `koanf:"rrf_k"                                             validate:"min=1"`
	CandidateMultiplier int    `koanf:"candidate_multiplier"                              validate:"min=1,max=20"`
}

// IndexConfig selects and configures the hybrid search backend.
type IndexConfig struct {
	Provider       string          `koanf:"provider"        env:"MOLRAG_INDEX_PROVIDER" validate:"oneof=pgvector local"`
	DSN            SensitiveString `koanf:"dsn"             env:"MOLRAG_INDEX_DSN"      sensitive:"true"`
	Table          string          `koanf:"table"           env:"MOLRAG_INDEX_TABLE"`
	Dimension      int             `koanf:"dimension"                                   validate:"min=1"`
	TextSearch     string          `koanf:"text_search"                                 validate:"required"`
	MaxConnections int32           `koanf:"max_connections"                             validate:"min=1"`
	PersistPath    string          `koanf:"persist_path"    env:"MOLRAG_INDEX_PATH"`
	Collection     string          `koanf:"collection"                                  validate:"required"`
}

// EmbedderConfig configures query embeddings.
type EmbedderConfig struct {
	Provider  string `koanf:"provider"   env:"MOLRAG_EMBEDDER_PROVIDER" validate:"oneof=openai ollama hash"`
	Model     string `koanf:"model"      env:"MOLRAG_EMBEDDER_MODEL"    validate:"required"`
	CacheSize int    `koanf:"cache_size"                                validate:"min=0"`
}

// TrustConfig lists the domains whose citations may reach the user.
type TrustConfig struct {
	AllowedDomains []string `koanf:"allowed_domains" env:"MOLRAG_TRUSTED_DOMAINS" validate:"min=1,dive,hostname_domain"`
}

// PromptsConfig points to an optional YAML file overriding the embedded prompt set.
type PromptsConfig struct {
	Path string `koanf:"path" env:"MOLRAG_PROMPTS_PATH"`
}

// MonitoringConfig controls the prometheus endpoint.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MOLRAG_MONITORING_ENABLED"`
	Addr    string `koanf:"addr"    env:"MOLRAG_METRICS_ADDR"`
	Path    string `koanf:"path"                                    validate:"omitempty,startswith=/"`
}

// Service defines the configuration management service interface.
type Service interface {
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(config *Config) error
	GetSource(key string) SourceType
}

// Source produces a configuration fragment keyed by koanf paths.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata contains metadata about configuration sources.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// DefaultTrustedDomains is the built-in allow-list.
var DefaultTrustedDomains = []string{"molecule.to", "molecule.xyz", "bio.xyz", "vitadao.com"}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			LogLevel:       "info",
			RequestTimeout: 2 * time.Minute,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Models: ModelsConfig{
			Provider:          "openai",
			AnswerModel:       "gpt-4o",
			AnswerTemperature: 0.6,
			JudgeModel:        "gpt-4o",
			JudgeTemperature:  0.1,
			JudgeMaxTokens:    50,
			WebSearchModel:    "gpt-4o-search-preview",
			FilterModel:       "gpt-4o",
			FilterTemperature: 0.3,
		},
		Retrieval: RetrievalConfig{
			TopK:                8,
			MaxTokens:           0,
			TokenModel:          "gpt-4o",
			RRFK:                60,
			CandidateMultiplier: 3,
		},
		Index: IndexConfig{
			Provider:       "local",
			Table:          "knowledge_passages",
			Dimension:      1536,
			TextSearch:     "english",
			MaxConnections: 4,
			PersistPath:    ".molrag/index",
			Collection:     "molecule",
		},
		Embedder: EmbedderConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			CacheSize: 256,
		},
		Trust: TrustConfig{
			AllowedDomains: append([]string(nil), DefaultTrustedDomains...),
		},
		Monitoring: MonitoringConfig{
			Addr: "127.0.0.1:9090",
			Path: "/metrics",
		},
	}
}

// Load loads configuration from defaults and environment only.
func Load() (*Config, error) {
	return NewService().Load(context.Background())
}

// SensitiveString hides its value from fmt and JSON output.
type SensitiveString string

const redacted = "[REDACTED]"

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Value returns the raw secret.
func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SensitiveString) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SensitiveString(raw)
	return nil
}
