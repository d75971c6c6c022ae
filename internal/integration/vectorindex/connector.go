package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/raadyn/kb-retrieval/internal/config"
	"github.com/raadyn/kb-retrieval/internal/entity"
	"github.com/raadyn/kb-retrieval/internal/integration/common"
	pkghttp "github.com/raadyn/kb-retrieval/pkg/http"
)

// Connector talks to the similarity index service. One namespace holds one
// tenant's vectors; a namespace the index has never seen is a valid empty
// state, so "not found" responses are mapped to empty results rather than
// errors.
type Connector struct {
	config    config.IndexConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(
	cfg config.IndexConnectorConfig,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

type upsertRequest struct {
	Namespace string          `json:"namespace"`
	Vectors   []entity.Vector `json:"vectors"`
}

type queryRequest struct {
	Namespace     string              `json:"namespace"`
	Vector        []float64           `json:"vector"`
	TopK          int                 `json:"top_k"`
	Filter        entity.VectorFilter `json:"filter"`
	IncludeValues bool                `json:"include_values"`
}

type queryResponse struct {
	Matches []entity.VectorMatch `json:"matches"`
}

type deleteRequest struct {
	Namespace  string   `json:"namespace"`
	PointerIDs []string `json:"ids,omitempty"`
	DeleteAll  bool     `json:"delete_all,omitempty"`
}

// Upsert writes vectors into the tenant's namespace, creating it on first
// write.
func (c *Connector) Upsert(ctx context.Context, namespace string, vectors []entity.Vector) error {
	ctxzap.Debug(ctx, "upserting vectors",
		zap.String("namespace", namespace),
		zap.Int("vector_count", len(vectors)),
	)

	req := upsertRequest{Namespace: namespace, Vectors: vectors}

	err := retry.Do(func() error {
		return c.connector.DoRequest(ctx, http.MethodPost, c.config.UpsertEndpoint, req, nil)
	}, append(c.config.Retry.ToRetryOptions(), retry.Context(ctx))...)
	if err != nil {
		ctxzap.Error(ctx, "vector upsert failed", zap.Error(err))
		return fmt.Errorf("upsert %d vectors: %w", len(vectors), err)
	}

	return nil
}

// Query returns the namespace's ranked nearest neighbors for the vector,
// restricted by filter. Vector values are always requested so callers can
// reuse the match embeddings.
func (c *Connector) Query(ctx context.Context, namespace string, vector []float64, topK int, filter entity.VectorFilter) ([]entity.VectorMatch, error) {
	req := queryRequest{
		Namespace:     namespace,
		Vector:        vector,
		TopK:          topK,
		Filter:        filter,
		IncludeValues: true,
	}

	var resp queryResponse
	err := retry.Do(func() error {
		return c.connector.DoRequest(ctx, http.MethodPost, c.config.QueryEndpoint, req, &resp)
	}, append(c.config.Retry.ToRetryOptions(), retry.Context(ctx))...)
	if err != nil {
		if isNotFound(err) {
			ctxzap.Debug(ctx, "namespace not found, returning no matches", zap.String("namespace", namespace))
			return nil, nil
		}
		ctxzap.Error(ctx, "vector query failed", zap.Error(err))
		return nil, fmt.Errorf("query namespace %s: %w", namespace, err)
	}

	ctxzap.Debug(ctx, "vector query completed",
		zap.String("namespace", namespace),
		zap.Int("match_count", len(resp.Matches)),
	)

	return resp.Matches, nil
}

// Delete removes the listed vectors from the namespace.
func (c *Connector) Delete(ctx context.Context, namespace string, pointerIDs []string) error {
	if len(pointerIDs) == 0 {
		return nil
	}

	req := deleteRequest{Namespace: namespace, PointerIDs: pointerIDs}

	err := retry.Do(func() error {
		return c.connector.DoRequest(ctx, http.MethodPost, c.config.DeleteEndpoint, req, nil)
	}, append(c.config.Retry.ToRetryOptions(), retry.Context(ctx))...)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		ctxzap.Error(ctx, "vector delete failed", zap.Error(err))
		return fmt.Errorf("delete %d vectors: %w", len(pointerIDs), err)
	}

	return nil
}

// DeleteNamespace removes every vector in the namespace. Deleting an absent
// namespace is a no-op.
func (c *Connector) DeleteNamespace(ctx context.Context, namespace string) error {
	ctxzap.Info(ctx, "deleting namespace", zap.String("namespace", namespace))

	req := deleteRequest{Namespace: namespace, DeleteAll: true}

	err := retry.Do(func() error {
		return c.connector.DoRequest(ctx, http.MethodPost, c.config.DeleteEndpoint, req, nil)
	}, append(c.config.Retry.ToRetryOptions(), retry.Context(ctx))...)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		ctxzap.Error(ctx, "namespace delete failed", zap.Error(err))
		return fmt.Errorf("delete namespace %s: %w", namespace, err)
	}

	return nil
}

func isNotFound(err error) bool {
	var httpErr *pkghttp.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}
