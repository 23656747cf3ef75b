// Package embedder generates vector embeddings for knowledge base text.
//
// # Providers
//
//   - ollama: POST {url}/api/embeddings with {model, prompt, options:{num_ctx}}.
//     The default model is nomic-embed-text (768 dimensions).
//   - openai: the OpenAI embeddings API via go-openai.
//   - local: a deterministic hashed bag-of-words embedder that needs no
//     network. It is meant for offline use and tests.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	e, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: "how do I run tests"})
//
// # Errors
//
// Provider failures never retry. A transport failure or timeout wraps
// types.ErrEmbeddingUnavailable. A non-2xx status or a response without an
// embedding wraps types.ErrEmbeddingRejected; the provider's {"error"} field,
// or else the trimmed body, is kept in the message.
//
// # Caching
//
// Each provider holds an LRU cache keyed by the SHA-256 of model and text, so
// re-indexing unchanged sections and repeating a query skip the provider.
// Cached vectors are copied on read.
package embedder
