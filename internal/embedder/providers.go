package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Provider names and environment variables.
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	EnvProvider     = "DOCSEARCH_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

const (
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	LocalModel         = "local-hash-embeddings"

	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	DefaultBatchSize = 50
	MaxBatchSize     = 100
)

// modelDimensions maps model-name prefixes to vector widths. Dimension lookup
// takes the longest matching prefix so versioned suffixes ("-v3", date tags)
// still resolve; unknown models fall back to the provider default.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"jina-embeddings-v2":     768,
	"jina-embeddings-v3":     1024,
	"jina-clip":              768,
}

// inferDimension resolves a model name to its vector width by longest prefix
// match, returning fallback when nothing matches.
func inferDimension(model string, fallback int) int {
	best := ""
	for prefix := range modelDimensions {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return fallback
	}
	return modelDimensions[best]
}

// remoteProvider talks to an OpenAI-compatible embeddings endpoint. Both the
// OpenAI and Jina APIs accept the same request shape and return data entries
// in input order.
type remoteProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	defaultDim int
	httpClient *http.Client
	cache      *Cache
}

// NewOpenAIProvider creates a Provider backed by the OpenAI embeddings API.
// An empty apiKey falls back to the OPENAI_API_KEY environment variable.
func NewOpenAIProvider(apiKey string, cache *Cache) (Provider, error) {
	return newRemoteProvider(ProviderOpenAI, "https://api.openai.com/v1/embeddings",
		apiKey, EnvOpenAIAPIKey, DefaultOpenAIModel, OpenAIDimension, cache)
}

// NewJinaProvider creates a Provider backed by the Jina AI embeddings API.
// An empty apiKey falls back to the JINA_API_KEY environment variable.
func NewJinaProvider(apiKey string, cache *Cache) (Provider, error) {
	return newRemoteProvider(ProviderJina, "https://api.jina.ai/v1/embeddings",
		apiKey, EnvJinaAPIKey, DefaultJinaModel, JinaDimension, cache)
}

func newRemoteProvider(name, endpoint, apiKey, envKey, model string, dim int, cache *Cache) (Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(envKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderConfigured, envKey)
	}
	return &remoteProvider{
		name:       name,
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		defaultDim: dim,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}, nil
}

func (r *remoteProvider) GenerateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	model := req.Model
	if model == "" {
		model = r.model
	}

	embeddings := make([]*Embedding, len(req.Texts))

	// Serve cache hits and collect the misses that need an API call.
	var missTexts []string
	var missIdx []int
	for i, text := range req.Texts {
		hash := ComputeHash(text)
		if r.cache != nil {
			if emb, ok := r.cache.Get(hash); ok && emb.Model == model {
				embeddings[i] = emb
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		cfg := DefaultRetryConfig()
		fetched, err := retryWithBackoff(ctx, cfg, func() ([]*Embedding, error) {
			return r.callAPI(ctx, missTexts, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, cfg.MaxRetries, err)
		}
		if len(fetched) != len(missTexts) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
				ErrProviderFailed, len(fetched), len(missTexts))
		}
		for j, emb := range fetched {
			hash := ComputeHash(missTexts[j])
			emb.Hash = hash
			if r.cache != nil {
				r.cache.Set(hash, emb)
			}
			embeddings[missIdx[j]] = emb
		}
	}

	return &BatchResponse{
		Embeddings: embeddings,
		Provider:   r.name,
		Model:      model,
	}, nil
}

func (r *remoteProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	body, err := json.Marshal(map[string]any{
		"input": texts,
		"model": model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Responses are index-tagged; reorder defensively in case the server
	// returned entries out of input order.
	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		pos := data.Index
		if pos < 0 || pos >= len(embeddings) {
			pos = i
		}
		embeddings[pos] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  r.name,
			Model:     apiResp.Model,
		}
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return embeddings, nil
}

func (r *remoteProvider) Dimension(model string) int {
	if model == "" {
		model = r.model
	}
	return inferDimension(model, r.defaultDim)
}

func (r *remoteProvider) Name() string { return r.name }

func (r *remoteProvider) Model() string { return r.model }

func (r *remoteProvider) MaxBatchSize() int { return MaxBatchSize }

func (r *remoteProvider) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider derives deterministic pseudo-embeddings from content hashes.
// The vectors carry no semantic signal; the provider exists so the pipeline
// runs end to end without API keys, and so tests get stable vectors.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates a local deterministic embedder.
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{cache: cache}, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hash := ComputeHash(text)
		if l.cache != nil {
			if emb, ok := l.cache.Get(hash); ok {
				embeddings[i] = emb
				continue
			}
		}
		emb := &Embedding{
			Vector:    hashVector(text, LocalDimension),
			Dimension: LocalDimension,
			Provider:  ProviderLocal,
			Model:     LocalModel,
			Hash:      hash,
		}
		if l.cache != nil {
			l.cache.Set(hash, emb)
		}
		embeddings[i] = emb
	}
	return &BatchResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      LocalModel,
	}, nil
}

// hashVector expands the text's SHA-256 digest into a dim-wide vector by
// hashing (text, block counter) pairs, mapping each byte to [-1, 1).
func hashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	var counter [8]byte
	for off := 0; off < dim; {
		binary.LittleEndian.PutUint64(counter[:], uint64(off))
		block := sha256.Sum256(append([]byte(text), counter[:]...))
		for _, b := range block {
			if off >= dim {
				break
			}
			vector[off] = float32(b)/128.0 - 1.0
			off++
		}
	}
	return vector
}

func (l *LocalProvider) Dimension(string) int { return LocalDimension }

func (l *LocalProvider) Name() string { return ProviderLocal }

func (l *LocalProvider) Model() string { return LocalModel }

func (l *LocalProvider) MaxBatchSize() int { return MaxBatchSize }

func (l *LocalProvider) Close() error { return nil }
