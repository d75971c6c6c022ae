package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/raadyn/kb-retrieval/internal/entity"
	"github.com/raadyn/kb-retrieval/internal/pkg/vectormath"
)

// SessionContext is the pre-warmed working set for one active conversation:
// parallel slices of chunks and their embeddings, tagged to a tenant.
type SessionContext struct {
	SessionID    string
	TenantID     string
	Chunks       []entity.ScoredChunk
	Embeddings   [][]float64
	CreatedAt    time.Time
	LastAccessed time.Time
}

// SessionTable holds at most one SessionContext per session id. A pre-warm
// replaces the working set wholesale; lookups refresh the last-access time;
// SweepIdle removes sessions idle beyond the inactivity window.
type SessionTable struct {
	mu         sync.Mutex
	sessions   map[string]*SessionContext
	idleWindow time.Duration
	now        func() time.Time
}

func NewSessionTable(idleWindow time.Duration) *SessionTable {
	if idleWindow <= 0 {
		idleWindow = time.Hour
	}
	return &SessionTable{
		sessions:   make(map[string]*SessionContext),
		idleWindow: idleWindow,
		now:        time.Now,
	}
}

// Set stores the working set for a session, replacing any previous one.
func (t *SessionTable) Set(sessionID, tenantID string, chunks []entity.ScoredChunk, embeddings [][]float64) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions[sessionID] = &SessionContext{
		SessionID:    sessionID,
		TenantID:     tenantID,
		Chunks:       chunks,
		Embeddings:   embeddings,
		CreatedAt:    now,
		LastAccessed: now,
	}
}

// Search scores every chunk in the session's working set against
// queryEmbedding and returns the top k at or above threshold, ranked by
// descending similarity with ties kept in working-set order. A session
// belonging to a different tenant is treated as absent.
func (t *SessionTable) Search(sessionID, tenantID string, queryEmbedding []float64, k int, threshold float64) []entity.ScoredChunk {
	t.mu.Lock()
	ctx, ok := t.sessions[sessionID]
	if !ok || ctx.TenantID != tenantID {
		t.mu.Unlock()
		return nil
	}
	ctx.LastAccessed = t.now()
	chunks := ctx.Chunks
	embeddings := ctx.Embeddings
	t.mu.Unlock()

	// The working set is immutable after Set, so scoring happens outside
	// the lock.
	var scored []entity.ScoredChunk
	for i, emb := range embeddings {
		if i >= len(chunks) {
			break
		}
		sim := vectormath.Cosine(queryEmbedding, emb)
		if sim < threshold {
			continue
		}
		chunk := chunks[i]
		chunk.Score = sim
		scored = append(scored, chunk)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// Clear removes a session's working set. Clearing an absent session is a
// no-op.
func (t *SessionTable) Clear(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

// ClearTenant removes every session belonging to the tenant.
func (t *SessionTable) ClearTenant(tenantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ctx := range t.sessions {
		if ctx.TenantID == tenantID {
			delete(t.sessions, id)
		}
	}
}

// SweepIdle removes sessions whose last access is older than the inactivity
// window and returns how many were removed.
func (t *SessionTable) SweepIdle() int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, ctx := range t.sessions {
		if now.Sub(ctx.LastAccessed) > t.idleWindow {
			delete(t.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of active sessions.
func (t *SessionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
