package retrieval

import (
	"context"

	"github.com/raadyn/kb-retrieval/internal/entity"
)

type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type VectorIndex interface {
	Query(ctx context.Context, namespace string, vector []float64, topK int, filter entity.VectorFilter) ([]entity.VectorMatch, error)
}
