package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default heuristic keyword sets used when the model output cannot be parsed.
var (
	DefaultRejectionKeywords = []string{"not covered", "exclusion", "deductible not", "pre-existing", "waiting period", "not eligible", "excludes"}
	DefaultApprovalKeywords  = []string{"covered", "shall be paid", "payable", "benefit", "eligible", "entitled"}
)

type Config struct {
	Server     ServerConfig
	LLM        LLMConfig
	Embeddings EmbeddingConfig
	Pipeline   PipelineConfig
	Audit      AuditConfig
	Log        LogConfig

	OllamaHost       string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
}

type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64 `validate:"gt=0"`
}

type LLMConfig struct {
	Provider  string `validate:"oneof=openai ollama anthropic"`
	Model     string `validate:"required"`
	MaxTokens int    `validate:"gt=0"`
	Timeout   time.Duration
}

type EmbeddingConfig struct {
	Provider  string `validate:"oneof=openai ollama"`
	Model     string `validate:"required"`
	Dimension int    `validate:"gte=0"`
	// RateLimit caps embedding batches per second; zero disables throttling.
	RateLimit float64 `validate:"gte=0"`
}

// PipelineConfig holds the retrieval and decision knobs. It is validated once
// at startup so the pipeline never sees an invalid window/overlap pair.
type PipelineConfig struct {
	WindowSize         int           `yaml:"window_size" validate:"gt=0"`
	Overlap            int           `yaml:"overlap" validate:"gte=0,ltfield=WindowSize"`
	TopK               int           `yaml:"top_k" validate:"gt=0"`
	BatchSize          int           `yaml:"batch_size" validate:"gt=0"`
	ExtractConcurrency int           `yaml:"extract_concurrency" validate:"gt=0"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	MaxDocumentBytes   int64         `yaml:"max_document_bytes" validate:"gt=0"`
	RejectionKeywords  []string      `yaml:"rejection_keywords" validate:"min=1,dive,required"`
	ApprovalKeywords   []string      `yaml:"approval_keywords" validate:"min=1,dive,required"`
}

type AuditConfig struct {
	PostgresDSN string
	Neo4jURI    string
	Neo4jUser   string
	Neo4jPass   string
}

type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
}

// Load reads configuration from the environment (after loading an optional
// .env file), overlays the YAML file named by CLAIM_AGENT_CONFIG, and
// validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: ServerConfig{
			Addr:           getEnv("SERVER_ADDR", ":8080"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 180*time.Second),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 170*time.Second),
			MaxBodyBytes:   int64(getEnvAsInt("MAX_BODY_BYTES", 50<<20)),
		},
		LLM: LLMConfig{
			Provider:  strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			Model:     getEnv("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens: getEnvAsInt("LLM_MAX_TOKENS", 800),
			Timeout:   getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Embeddings: EmbeddingConfig{
			Provider:  strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderOpenAI)),
			Model:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension: getEnvAsInt("EMBEDDING_DIMENSION", 0),
			RateLimit: getEnvAsFloat("EMBEDDING_RATE_LIMIT", 0),
		},
		Pipeline: DefaultPipeline(),
		Audit: AuditConfig{
			PostgresDSN: getEnv("AUDIT_POSTGRES_DSN", ""),
			Neo4jURI:    getEnv("AUDIT_NEO4J_URI", ""),
			Neo4jUser:   getEnv("AUDIT_NEO4J_USERNAME", "neo4j"),
			Neo4jPass:   getEnv("AUDIT_NEO4J_PASSWORD", "password"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		OllamaHost:       getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
	}

	p := &cfg.Pipeline
	p.WindowSize = getEnvAsInt("CHUNK_SIZE", p.WindowSize)
	p.Overlap = getEnvAsInt("CHUNK_OVERLAP", p.Overlap)
	p.TopK = getEnvAsInt("TOP_K", p.TopK)
	p.BatchSize = getEnvAsInt("EMBED_BATCH_SIZE", p.BatchSize)
	p.ExtractConcurrency = getEnvAsInt("EXTRACT_CONCURRENCY", p.ExtractConcurrency)
	p.FetchTimeout = getEnvAsDuration("FETCH_TIMEOUT", p.FetchTimeout)
	p.MaxDocumentBytes = int64(getEnvAsInt("MAX_DOCUMENT_BYTES", int(p.MaxDocumentBytes)))

	if path := getEnv("CLAIM_AGENT_CONFIG", ""); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultPipeline returns the pipeline settings used when nothing overrides them.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		WindowSize:         900,
		Overlap:            150,
		TopK:               6,
		BatchSize:          10,
		ExtractConcurrency: 4,
		FetchTimeout:       30 * time.Second,
		MaxDocumentBytes:   25 << 20,
		RejectionKeywords:  append([]string(nil), DefaultRejectionKeywords...),
		ApprovalKeywords:   append([]string(nil), DefaultApprovalKeywords...),
	}
}

var validate = validator.New()

// Validate checks ranges and provider names. It is meant to run once at startup.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ValidatePipeline validates only the pipeline section.
func ValidatePipeline(p PipelineConfig) error {
	if err := validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("invalid pipeline config: %s", describe(fieldErrs[0]))
		}
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "ltfield":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on '%s'", field, fe.Tag())
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsFloat(key string, fallback float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}
