package entity

import (
	"fmt"
	"time"
)

// DefaultTopics is the topic set assigned to a tenant on initialization.
var DefaultTopics = []string{
	"books",
	"objection_handling",
	"playbooks",
	"videos",
	"compliance",
	"product_knowledge",
}

// Tenant is the isolation boundary for one customer's documents and caches.
type Tenant struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Topics    []string     `json:"topics"`
	Config    TenantConfig `json:"config"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TenantConfig is the typed retrieval configuration snapshot stored with a
// tenant. Extra carries free-form string settings that have no typed field.
type TenantConfig struct {
	EmbeddingModel      string            `json:"embedding_model,omitempty"`
	EmbeddingDimensions int               `json:"embedding_dimensions,omitempty"`
	ChunkSize           int               `json:"chunk_size,omitempty"`
	ChunkOverlap        int               `json:"chunk_overlap,omitempty"`
	Extra               map[string]string `json:"extra,omitempty"`
}

// TenantNamespace returns the similarity-index namespace holding the
// tenant's vectors.
func TenantNamespace(tenantID string) string {
	return "tenant_" + tenantID
}

// HasTopic reports whether topic belongs to the tenant's configured set.
func (t *Tenant) HasTopic(topic string) bool {
	for _, known := range t.Topics {
		if known == topic {
			return true
		}
	}
	return false
}

// Document is the metadata row for one ingested source file.
type Document struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Filename    string    `json:"filename"`
	Topic       string    `json:"topic"`
	ContentHash string    `json:"content_hash"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Chunk is one indexed slice of a document's text. PointerID links the
// metadata row to the vector stored in the similarity index.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	TenantID   string    `json:"tenant_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Topic      string    `json:"topic"`
	PointerID  string    `json:"pointer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScoredChunk is a retrieval result: chunk fields plus a relevance score.
type ScoredChunk struct {
	Content  string  `json:"content"`
	Topic    string  `json:"topic"`
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
}

// DocumentText is one raw text document submitted for ingestion. The text is
// already extracted from its source file by an upstream collaborator.
type DocumentText struct {
	Text     string `json:"text"`
	Filename string `json:"filename,omitempty"`
}

// FilenameOrDefault returns the provided filename or a positional fallback.
func (d DocumentText) FilenameOrDefault(position int) string {
	if d.Filename != "" {
		return d.Filename
	}
	return fmt.Sprintf("document_%d", position)
}

// IngestFileResult reports the outcome of ingesting one document. A failed
// document carries Error while the rest of the batch proceeds.
type IngestFileResult struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PrewarmResult reports what a session pre-warm call assembled.
type PrewarmResult struct {
	SessionID       string `json:"session_id"`
	TenantID        string `json:"tenant_id"`
	ChunksPrewarmed int    `json:"chunks_prewarmed"`
	QueriesRun      int    `json:"queries_run"`
	ElapsedMs       int64  `json:"elapsed_ms"`
}

// Vector is one (pointer id, embedding, denormalized filter fields) entry
// upserted into the similarity index.
type Vector struct {
	PointerID string         `json:"id"`
	Values    []float64      `json:"values"`
	Metadata  VectorMetadata `json:"metadata"`
}

// VectorMetadata is the filter and display payload stored alongside a vector.
// Content is truncated on upsert; the index is never the source of truth.
type VectorMetadata struct {
	DocumentID string `json:"document_id"`
	TenantID   string `json:"tenant_id"`
	ChunkIndex int    `json:"chunk_index"`
	Topic      string `json:"topic"`
	Filename   string `json:"filename"`
	Content    string `json:"content"`
}

// VectorFilter restricts an index query. TenantID is always set; Topics is
// optional and matches any of the listed topic labels.
type VectorFilter struct {
	TenantID string   `json:"tenant_id"`
	Topics   []string `json:"topics,omitempty"`
}

// VectorMatch is one ranked result from an index query.
type VectorMatch struct {
	PointerID string         `json:"id"`
	Score     float64        `json:"score"`
	Values    []float64      `json:"values,omitempty"`
	Metadata  VectorMetadata `json:"metadata"`
}

// TenantStats summarizes a tenant's stored corpus.
type TenantStats struct {
	TenantID         string         `json:"tenant_id"`
	TotalDocuments   int            `json:"total_documents"`
	TotalChunks      int            `json:"total_chunks"`
	DocumentsByTopic map[string]int `json:"documents_by_topic"`
}

// EmbeddingCacheStats reports exact-match embedding cache activity.
type EmbeddingCacheStats struct {
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// SemanticCacheStats reports semantic result cache activity. Tenants is the
// number of tenants that currently hold at least one cached result.
type SemanticCacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Tenants int     `json:"tenants"`
}

// CacheStats is the full cache observability snapshot.
type CacheStats struct {
	EmbeddingCache  EmbeddingCacheStats `json:"embedding_cache"`
	SemanticCache   SemanticCacheStats  `json:"semantic_cache"`
	SessionContexts int                 `json:"session_contexts"`
}
