package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds provider construction settings.
type Config struct {
	Provider  string
	APIKey    string
	CacheSize int
}

// NewProvider creates a provider from explicit configuration.
func NewProvider(cfg Config) (Provider, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNoProviderConfigured, cfg.Provider)
	}
}

// NewProviderFromEnv creates a provider from environment variables.
// Resolution order:
//  1. DOCSEARCH_EMBEDDING_PROVIDER (jina, openai, local)
//  2. Whichever of JINA_API_KEY / OPENAI_API_KEY is set
//  3. The local deterministic provider
func NewProviderFromEnv() (Provider, error) {
	provider := os.Getenv(EnvProvider)
	if provider == "" {
		provider = DetectProvider()
	}
	return NewProvider(Config{
		Provider:  provider,
		CacheSize: defaultCacheSize,
	})
}

// DetectProvider returns the provider name the environment would select.
func DetectProvider() string {
	if p := os.Getenv(EnvProvider); p != "" {
		return strings.ToLower(p)
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
