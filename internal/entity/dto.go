package entity

// CreateTenantRequest is the payload for POST /tenants.
type CreateTenantRequest struct {
	ID     string   `json:"id,omitempty"`
	Name   string   `json:"name"`
	Topics []string `json:"topics,omitempty"`
}

// IngestRequest is the payload for POST /tenants/{tenant_id}/documents.
type IngestRequest struct {
	Topic     string         `json:"topic"`
	Documents []DocumentText `json:"documents"`
}

// IngestResponse reports per-document outcomes and the total chunk count.
type IngestResponse struct {
	ChunksWritten int                `json:"chunks_written"`
	Files         []IngestFileResult `json:"files"`
}

// RetrieveRequest is the payload for POST /tenants/{tenant_id}/retrieve.
type RetrieveRequest struct {
	Query     string   `json:"query"`
	Topics    []string `json:"topics,omitempty"`
	TopK      int      `json:"top_k,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

// RetrieveResponse carries the ranked result set. An empty list is a valid
// answer, not an error.
type RetrieveResponse struct {
	Results []ScoredChunk `json:"results"`
}

// PrewarmRequest is the payload for POST /sessions/{session_id}/prewarm.
type PrewarmRequest struct {
	TenantID string `json:"tenant_id"`
}

// ListDocumentsResponse is the payload for GET /tenants/{tenant_id}/documents.
type ListDocumentsResponse struct {
	Documents []*Document `json:"documents"`
}

// StatusResponse is a minimal acknowledgement body.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the error body returned by all handlers.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
