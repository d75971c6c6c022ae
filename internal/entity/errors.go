package entity

import "errors"

// Tenant errors
var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantExists   = errors.New("tenant already exists")
	ErrInvalidTenant  = errors.New("invalid tenant id")
)

// Document errors
var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDuplicateDocument = errors.New("document already ingested")
	ErrEmptyDocument     = errors.New("document text is empty")
	ErrTooManyDocuments  = errors.New("too many documents in one request")
	ErrDocumentTooLarge  = errors.New("document text too large")
)

// Retrieval errors
var (
	ErrEmptyQuery   = errors.New("query text is empty")
	ErrUnknownTopic = errors.New("topic is not configured for tenant")
)

// External collaborator failure kinds. Connector errors are wrapped with one
// of these so handlers can map them without knowing transport details.
var (
	ErrProvider = errors.New("embedding provider failure")
	ErrIndex    = errors.New("similarity index failure")
)

// Request validation errors
var (
	ErrMissingField     = errors.New("required field is missing")
	ErrInvalidParameter = errors.New("invalid parameter")
)
