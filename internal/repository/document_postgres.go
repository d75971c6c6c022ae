package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raadyn/kb-retrieval/internal/entity"
)

// DocumentRepository defines the interface for document and chunk persistence
type DocumentRepository interface {
	FindByContent(ctx context.Context, tenantID, filename, contentHash string) (*entity.Document, error)
	CreateWithChunks(ctx context.Context, doc *entity.Document, chunks []entity.Chunk, beforeCommit func(ctx context.Context) error) (*entity.Document, error)
	ListDocuments(ctx context.Context, tenantID, topic string) ([]*entity.Document, error)
	ChunkPointerIDs(ctx context.Context, tenantID, documentID string) ([]string, error)
	DeleteDocument(ctx context.Context, tenantID, documentID string) error
	DeleteTenantData(ctx context.Context, tenantID string) error
	CountDocuments(ctx context.Context, tenantID string) (int, error)
	CountChunks(ctx context.Context, tenantID string) (int, error)
	TopicCounts(ctx context.Context, tenantID string) (map[string]int, error)
}

var _ DocumentRepository = &DocumentPostgres{}

// DocumentPostgres implements DocumentRepository using PostgreSQL
type DocumentPostgres struct {
	db *pgxpool.Pool
}

func NewDocumentPostgres(db *pgxpool.Pool) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

func (r *DocumentPostgres) FindByContent(ctx context.Context, tenantID, filename, contentHash string) (*entity.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, tenant_id, filename, topic, content_hash, chunk_count, created_at, updated_at
		 FROM documents
		 WHERE tenant_id = $1 AND filename = $2 AND content_hash = $3`,
		tenantID, filename, contentHash,
	)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("find document by content: %w", err)
	}

	return doc, nil
}

// CreateWithChunks stages the document row and its chunk rows in one
// transaction, runs beforeCommit (index upserts happen there), then commits.
// Any failure rolls the whole document back; a unique-constraint violation
// on (tenant, filename, hash) means a concurrent upload won the race and is
// reported as ErrDuplicateDocument.
func (r *DocumentPostgres) CreateWithChunks(ctx context.Context, doc *entity.Document, chunks []entity.Chunk, beforeCommit func(ctx context.Context) error) (*entity.Document, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO documents (id, tenant_id, filename, topic, content_hash, chunk_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, tenant_id, filename, topic, content_hash, chunk_count, created_at, updated_at`,
		doc.ID, doc.TenantID, doc.Filename, doc.Topic, doc.ContentHash, len(chunks),
	)

	created, err := scanDocument(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, entity.ErrDuplicateDocument
		}
		return nil, fmt.Errorf("insert document: %w", err)
	}

	for _, chunk := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO document_chunks (id, document_id, tenant_id, chunk_index, content, topic, pointer_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			chunk.ID, chunk.DocumentID, chunk.TenantID, chunk.ChunkIndex, chunk.Content, chunk.Topic, chunk.PointerID,
		)
		if err != nil {
			return nil, fmt.Errorf("insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if beforeCommit != nil {
		if err := beforeCommit(ctx); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit document: %w", err)
	}

	return created, nil
}

func (r *DocumentPostgres) ListDocuments(ctx context.Context, tenantID, topic string) ([]*entity.Document, error) {
	query := `SELECT id, tenant_id, filename, topic, content_hash, chunk_count, created_at, updated_at
	          FROM documents WHERE tenant_id = $1`
	args := []any{tenantID}

	if topic != "" {
		query += ` AND topic = $2`
		args = append(args, topic)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	return docs, nil
}

func (r *DocumentPostgres) ChunkPointerIDs(ctx context.Context, tenantID, documentID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT pointer_id FROM document_chunks
		 WHERE tenant_id = $1 AND document_id = $2
		 ORDER BY chunk_index`,
		tenantID, documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("select pointer ids: %w", err)
	}
	defer rows.Close()

	var pointerIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pointer id: %w", err)
		}
		pointerIDs = append(pointerIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select pointer ids: %w", err)
	}

	return pointerIDs, nil
}

func (r *DocumentPostgres) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND tenant_id = $2`,
		documentID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentPostgres) DeleteTenantData(ctx context.Context, tenantID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("delete tenant chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("delete tenant documents: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tenant delete: %w", err)
	}
	return nil
}

func (r *DocumentPostgres) CountDocuments(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM documents WHERE tenant_id = $1`, tenantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func (r *DocumentPostgres) CountChunks(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM document_chunks WHERE tenant_id = $1`, tenantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

func (r *DocumentPostgres) TopicCounts(ctx context.Context, tenantID string) (map[string]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT topic, count(*) FROM documents
		 WHERE tenant_id = $1 GROUP BY topic`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("count documents by topic: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			topic string
			count int
		)
		if err := rows.Scan(&topic, &count); err != nil {
			return nil, fmt.Errorf("scan topic count: %w", err)
		}
		counts[topic] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count documents by topic: %w", err)
	}

	return counts, nil
}

func scanDocument(row pgx.Row) (*entity.Document, error) {
	var doc entity.Document
	err := row.Scan(&doc.ID, &doc.TenantID, &doc.Filename, &doc.Topic, &doc.ContentHash, &doc.ChunkCount, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
