package tenant

import (
	"context"
)

type VectorIndex interface {
	Delete(ctx context.Context, namespace string, pointerIDs []string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}
