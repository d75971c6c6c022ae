package ingestion

import (
	"context"

	"github.com/raadyn/kb-retrieval/internal/entity"
)

type EmbeddingProvider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, vectors []entity.Vector) error
}
