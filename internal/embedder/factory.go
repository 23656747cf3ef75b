package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	URL       string
	Model     string
	APIKey    string
	NumCtx    int
	Timeout   time.Duration
	CacheSize int
}

// DefaultConfig returns the Ollama defaults
func DefaultConfig() Config {
	return Config{
		Provider:  ProviderOllama,
		URL:       DefaultOllamaURL,
		Model:     DefaultOllamaModel,
		NumCtx:    DefaultNumCtx,
		Timeout:   DefaultTimeout,
		CacheSize: 4096,
	}
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", ProviderOllama:
		return NewOllamaProvider(cfg.URL, cfg.Model, cfg.NumCtx, cfg.Timeout, cache), nil
	case ProviderOpenAI:
		model := cfg.Model
		if model == DefaultOllamaModel {
			model = DefaultOpenAIModel
		}
		return NewOpenAIProvider(cfg.APIKey, openAIBaseURL(cfg.URL), model, cfg.Timeout, cache)
	case ProviderLocal:
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// openAIBaseURL ignores the Ollama default so the public API is used
func openAIBaseURL(url string) string {
	if url == DefaultOllamaURL {
		return ""
	}
	return url
}

// Pinger is implemented by embedders that can check provider reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check verifies the embedder can produce a vector. Providers with a cheap
// reachability probe use it; others embed a short probe text.
func Check(ctx context.Context, e Embedder) error {
	if p, ok := e.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	_, err := e.GenerateEmbedding(ctx, EmbeddingRequest{Text: "memex health check"})
	return err
}
