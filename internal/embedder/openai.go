package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dshills/memex-mcp/pkg/types"
)

// OpenAIProvider implements Embedder using the OpenAI embeddings API
type OpenAIProvider struct {
	client     *openai.Client
	httpClient *http.Client
	model      string
	cache      *Cache
}

// NewOpenAIProvider creates a new OpenAI embedder. baseURL may be empty to use
// the public API.
func NewOpenAIProvider(apiKey, baseURL, model string, timeout time.Duration, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrNoProviderEnabled)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := &http.Client{Timeout: timeout}
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = httpClient
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(cfg),
		httpClient: httpClient,
		model:      model,
		cache:      cache,
	}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = o.model
	}

	hash := ComputeHash(model, req.Text)
	if o.cache != nil {
		if emb, ok := o.cache.Get(hash); ok {
			return emb, nil
		}
	}

	resp, err := o.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: model,
	})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = o.model
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: req.Texts,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) != len(req.Texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			types.ErrEmbeddingRejected, len(req.Texts), len(resp.Data))
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(req.Texts) || len(data.Embedding) == 0 {
			return nil, fmt.Errorf("%w: malformed embedding at index %d", types.ErrEmbeddingRejected, data.Index)
		}
		vector := make([]float32, len(data.Embedding))
		for i := range data.Embedding {
			vector[i] = float32(data.Embedding[i])
		}

		hash := ComputeHash(model, req.Texts[data.Index])
		emb := &Embedding{
			Vector:    vector,
			Dimension: len(vector),
			Provider:  ProviderOpenAI,
			Model:     model,
			Hash:      hash,
		}
		if o.cache != nil {
			o.cache.Set(hash, emb)
		}
		embeddings[data.Index] = emb
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("%w: no embedding for text %d", types.ErrEmbeddingRejected, i)
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderOpenAI,
		Model:      model,
	}, nil
}

// classifyOpenAIError separates API refusals from transport failures
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: openai returned %d: %s", types.ErrEmbeddingRejected, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return fmt.Errorf("%w: openai returned %d: %v", types.ErrEmbeddingRejected, reqErr.HTTPStatusCode, reqErr.Err)
	}
	return fmt.Errorf("%w: openai: %v", types.ErrEmbeddingUnavailable, err)
}

func (o *OpenAIProvider) Dimension() int {
	return OpenAIDimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
