package azure

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	openai "github.com/sashabaranov/go-openai"
)

// embedBatchSize matches the per-request input limit of ada-002 deployments.
const embedBatchSize = 16

var _ embedding.Embedder = (*Embedder)(nil)

// Embedder produces document vectors through an embedding deployment.
type Embedder struct {
	client     *openai.Client
	deployment string
}

// NewEmbedder builds an embedder bound to cfg.Deployment.
func NewEmbedder(cfg Config) (*Embedder, error) {
	client, err := cfg.client()
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, deployment: cfg.Deployment}, nil
}

// EmbedStrings returns one vector per input text, in input order.
func (e *Embedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	vectors := make([][]float64, len(texts))

	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.EmbeddingModel(e.deployment),
		})
		if err != nil {
			return nil, fmt.Errorf("azure embeddings: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("azure embeddings: expected %d vectors, got %d", end-start, len(resp.Data))
		}

		for i, item := range resp.Data {
			idx := start + i
			if item.Index >= 0 && item.Index < end-start {
				idx = start + item.Index
			}
			vec := make([]float64, len(item.Embedding))
			for j, v := range item.Embedding {
				vec[j] = float64(v)
			}
			vectors[idx] = vec
		}
	}

	for i, vec := range vectors {
		if vec == nil {
			return nil, fmt.Errorf("azure embeddings: missing vector for input %d", i)
		}
	}
	return vectors, nil
}
