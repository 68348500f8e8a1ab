// Package embedder turns document chunk text into vector embeddings.
//
// The package has two layers. Provider implementations (Jina AI, OpenAI, and
// a local deterministic fallback) speak to one embeddings API each and
// guarantee order-preserving batch output. Service sits on top as a registry
// of named providers and owns the operational behavior: batching, failure
// isolation, zero-vector fallbacks, and token accounting. Additional
// providers register before the first Embed call; the registry then seals so
// concurrent embeds see a fixed provider set.
//
// # Basic Usage
//
//	provider, err := embedder.NewProviderFromEnv()
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
//
//	svc := embedder.NewService(provider, 0)
//	res, err := svc.Embed(ctx, embedder.Request{Texts: chunkTexts})
//	if err != nil {
//	    return err
//	}
//	// res.Vectors[i] corresponds to chunkTexts[i], always.
//
// # Provider Selection
//
// Provider choice follows environment variables:
//
//  1. DOCSEARCH_EMBEDDING_PROVIDER is set → use that provider
//  2. Else if JINA_API_KEY is set → Jina AI (1024 dimensions)
//  3. Else if OPENAI_API_KEY is set → OpenAI (1536 dimensions)
//  4. Else → local deterministic provider (384 dimensions, offline)
//
// The local provider hashes content into stable pseudo-vectors. It carries no
// semantic signal and exists so ingestion and tests run without API keys.
//
// # Failure Semantics
//
// Remote calls retry with exponential backoff. A batch that still fails is
// bisected so one bad text cannot zero out its whole batch; texts that fail
// even as singletons, and blank texts, get zero vectors, with their positions
// reported in Result.Degraded. The 1:1 positional mapping between input texts
// and output vectors is never broken, whatever fails.
//
// # Caching
//
// Providers share an LRU cache keyed by SHA-256 of the text, so re-ingesting
// an unchanged document costs no API calls. Degraded vectors are never
// cached.
//
// # Token Accounting
//
// Result.TokenEstimate counts tokens with tiktoken's cl100k_base encoding
// when its data files are available, and falls back to a runes/4 heuristic
// offline. Estimates are informational; nothing enforces them.
package embedder
