package vectorindex

import (
	"context"
	"sort"
	"sync"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/raadyn/kb-retrieval/internal/entity"
	"github.com/raadyn/kb-retrieval/internal/pkg/vectormath"
)

// MockConnector is an in-memory similarity index: per-namespace vector maps
// ranked by brute-force cosine similarity. It backs local runs and tests.
type MockConnector struct {
	mu         sync.Mutex
	namespaces map[string]map[string]entity.Vector
	logger     *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{
		namespaces: make(map[string]map[string]entity.Vector),
		logger:     logger,
	}
}

func (m *MockConnector) Upsert(ctx context.Context, namespace string, vectors []entity.Vector) error {
	ctxzap.Debug(ctx, "[MOCK] upserting vectors",
		zap.String("namespace", namespace),
		zap.Int("vector_count", len(vectors)),
	)

	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]entity.Vector)
		m.namespaces[namespace] = ns
	}
	for _, v := range vectors {
		ns[v.PointerID] = v
	}
	return nil
}

func (m *MockConnector) Query(ctx context.Context, namespace string, vector []float64, topK int, filter entity.VectorFilter) ([]entity.VectorMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		// An unknown namespace is a valid empty state.
		return nil, nil
	}

	var matches []entity.VectorMatch
	for _, v := range ns {
		if !matchesFilter(v.Metadata, filter) {
			continue
		}
		matches = append(matches, entity.VectorMatch{
			PointerID: v.PointerID,
			Score:     vectormath.Cosine(vector, v.Values),
			Values:    v.Values,
			Metadata:  v.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}

	ctxzap.Debug(ctx, "[MOCK] vector query completed",
		zap.String("namespace", namespace),
		zap.Int("match_count", len(matches)),
	)

	return matches, nil
}

func (m *MockConnector) Delete(ctx context.Context, namespace string, pointerIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		return nil
	}
	for _, id := range pointerIDs {
		delete(ns, id)
	}
	return nil
}

func (m *MockConnector) DeleteNamespace(ctx context.Context, namespace string) error {
	ctxzap.Debug(ctx, "[MOCK] deleting namespace", zap.String("namespace", namespace))

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, namespace)
	return nil
}

// VectorCount reports how many vectors a namespace holds.
func (m *MockConnector) VectorCount(namespace string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.namespaces[namespace])
}

func matchesFilter(md entity.VectorMetadata, filter entity.VectorFilter) bool {
	if filter.TenantID != "" && md.TenantID != filter.TenantID {
		return false
	}
	if len(filter.Topics) > 0 {
		found := false
		for _, t := range filter.Topics {
			if md.Topic == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
