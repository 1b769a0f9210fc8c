package openaiEmbedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/rag/embedding"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var logger = logger_i.NewLogger("openai_embedding")

type client struct {
	api   openai.Client
	model string
}

// New builds the OpenAI embedder. httpClient may be nil to use the SDK default.
func New(apiKey, model string, httpClient *http.Client, opts ...option.RequestOption) embedding.Embedder {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(2)}
	if httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(httpClient))
	}
	reqOpts = append(reqOpts, opts...)
	logger.Info("OpenAI Embedding client created", "model", model)
	return &client{api: openai.NewClient(reqOpts...), model: model}
}

func (c *client) ModelName() string {
	return c.model
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.embed(ctx, openai.EmbeddingNewParamsInputUnion{OfString: openai.String(query)}, 1)
	if err != nil {
		logger.With("traceId", ctx.Value(config.TRACE_ID_KEY)).Error("Error getting query embedding from OpenAI", "error", err)
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	results := make([][]float32, 0, len(chunks))
	for _, batch := range embedding.Batches(chunks, config.EmbeddingBatchSize) {
		vectors, err := c.embed(ctx, openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch}, len(batch))
		if err != nil {
			logger.With("traceId", ctx.Value(config.TRACE_ID_KEY)).Error("Error getting batch embeddings from OpenAI", "error", err)
			return nil, err
		}
		results = append(results, vectors...)
	}
	return results, nil
}

func (c *client) embed(ctx context.Context, input openai.EmbeddingNewParamsInputUnion, want int) ([][]float32, error) {
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      input,
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: openai.Int(int64(config.EmbeddingOutputDimensionality)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}
	if len(resp.Data) != want {
		return nil, fmt.Errorf("openai embedding: expected %d vectors, got %d", want, len(resp.Data))
	}

	vectors := make([][]float32, want)
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= want {
			return nil, fmt.Errorf("openai embedding: index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vectors[d.Index] = v
	}
	return vectors, nil
}
