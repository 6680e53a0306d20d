package embeddings

import (
	"context"
	"fmt"
	"strings"

	"github.com/fabfab/claim-agent/config"
)

// Embedder maps a batch of strings to vectors of one fixed dimension. The
// result must be the same length and order as texts; a batch that partly
// fails must fail as a whole.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Provider string
	Model    string
	// Dimension is enforced on every returned vector when positive.
	Dimension int
	// Shorten asks the provider to truncate vectors to Dimension.
	Shorten bool

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

type modelInfo struct {
	dimension int
	shortens  bool
}

// knownModels lists the output size of common embedding models. Models that
// shorten accept any requested dimension up to their native size.
var knownModels = map[string]modelInfo{
	"text-embedding-3-small": {dimension: 1536, shortens: true},
	"text-embedding-3-large": {dimension: 3072, shortens: true},
	"text-embedding-ada-002": {dimension: 1536},
	"nomic-embed-text":       {dimension: 768},
	"mxbai-embed-large":      {dimension: 1024},
	"all-minilm":             {dimension: 384},
	"bge-m3":                 {dimension: 1024},
}

// NewEmbedder builds the configured provider. A configured dimension that the
// model cannot produce is rejected here, before any document is embedded.
func NewEmbedder(cfg config.Config) (Embedder, error) {
	dimension, shorten, err := resolveDimension(cfg.Embeddings.Model, cfg.Embeddings.Dimension)
	if err != nil {
		return nil, err
	}

	opts := Options{
		Provider:      cfg.Embeddings.Provider,
		Model:         cfg.Embeddings.Model,
		Dimension:     dimension,
		Shorten:       shorten,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		if opts.Shorten {
			return nil, fmt.Errorf("embedding model %s cannot be shortened by ollama", opts.Model)
		}
		return NewOllamaEmbedder(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIEmbedder(opts), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}
}

// resolveDimension returns the dimension to enforce for model and whether the
// provider must be asked to shorten its vectors. Unknown models keep the
// requested value as is.
func resolveDimension(model string, requested int) (int, bool, error) {
	name := strings.ToLower(strings.TrimSpace(model))
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[:i]
	}

	info, ok := knownModels[name]
	switch {
	case !ok:
		return requested, false, nil
	case requested == 0 || requested == info.dimension:
		return info.dimension, false, nil
	case info.shortens && requested < info.dimension:
		return requested, true, nil
	default:
		return 0, false, fmt.Errorf("EMBEDDING_DIMENSION %d does not match model %s, which produces %d", requested, model, info.dimension)
	}
}
