// Package cache implements the three in-memory tiers the query orchestrator
// consults before touching the similarity index: an exact-key LRU for query
// embeddings, a per-tenant semantic result cache matched by cosine
// similarity, and a table of pre-warmed session contexts.
//
// Each structure is guarded by its own mutex; locks cover map and slice
// mutation only and are never held across provider, index, or store calls.
package cache
