package embedding

import (
	"context"
	"hash/fnv"
	"math/rand"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/raadyn/kb-retrieval/internal/cache"
	"github.com/raadyn/kb-retrieval/internal/pkg/vectormath"
)

// MockConnector produces deterministic unit vectors derived from the text
// itself: identical texts always map to identical vectors, and distinct
// texts are near-orthogonal with overwhelming probability. That is enough
// for local runs and for exercising every similarity path in tests.
type MockConnector struct {
	dimensions int
	logger     *zap.Logger
}

func NewMockConnector(dimensions int, logger *zap.Logger) *MockConnector {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &MockConnector{
		dimensions: dimensions,
		logger:     logger,
	}
}

func (m *MockConnector) Embed(ctx context.Context, text string) ([]float64, error) {
	ctxzap.Debug(ctx, "[MOCK] embedding text", zap.Int("text_length", len(text)))
	return m.vectorFor(text), nil
}

func (m *MockConnector) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	ctxzap.Debug(ctx, "[MOCK] embedding batch", zap.Int("text_count", len(texts)))

	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = m.vectorFor(text)
	}
	return vectors, nil
}

func (m *MockConnector) vectorFor(text string) []float64 {
	h := fnv.New64a()
	h.Write([]byte(cache.NormalizeQuery(text)))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vector := make([]float64, m.dimensions)
	for i := range vector {
		vector[i] = rng.Float64()*2 - 1
	}
	return vectormath.Normalize(vector)
}
