package sessions

import (
	"context"

	"github.com/raadyn/kb-retrieval/internal/entity"
)

type SessionUsecase interface {
	PrewarmSession(ctx context.Context, sessionID string, req *entity.PrewarmRequest) (*entity.PrewarmResult, error)
	ClearSession(ctx context.Context, sessionID string)
	CacheStats() entity.CacheStats
}
