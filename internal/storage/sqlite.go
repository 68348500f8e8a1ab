package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	ops
}

// querier is implemented by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ops carries every operation, bound either to the database or to an open
// transaction.
type ops struct {
	q querier
}

// openDatabase opens a SQLite database with WAL mode and a single writer
// connection.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Open creates a SQLite store at dbPath and applies pending migrations.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return &SQLiteStore{db: db, ops: ops{q: db}}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BeginTx starts a transaction sharing the same operation set.
func (s *SQLiteStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, ops: ops{q: tx}}, nil
}

type sqliteTx struct {
	tx *sql.Tx
	ops
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }

// Document operations

func (o ops) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	now := time.Now()
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO documents (id, owner_id, name, file_path, status, error, page_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.OwnerID, doc.Name, doc.FilePath, doc.Status,
		TruncateError(doc.Error), doc.PageCount, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("document %s: %w", doc.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create document: %w", err)
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return nil
}

func (o ops) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	err := o.q.QueryRowContext(ctx, `
		SELECT id, owner_id, name, file_path, status, error, page_count, created_at, updated_at
		FROM documents WHERE id = ?
	`, id).Scan(&doc.ID, &doc.OwnerID, &doc.Name, &doc.FilePath, &doc.Status,
		&doc.Error, &doc.PageCount, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (o ops) UpdateDocument(ctx context.Context, doc *Document) error {
	now := time.Now()
	res, err := o.q.ExecContext(ctx, `
		UPDATE documents
		SET owner_id = ?, name = ?, file_path = ?, status = ?, error = ?, page_count = ?, updated_at = ?
		WHERE id = ?
	`, doc.OwnerID, doc.Name, doc.FilePath, doc.Status,
		TruncateError(doc.Error), doc.PageCount, now, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s: %w", doc.ID, ErrNotFound)
	}
	doc.UpdatedAt = now
	return nil
}

func (o ops) UpdateDocumentStatus(ctx context.Context, id, status, errMsg string) error {
	res, err := o.q.ExecContext(ctx, `
		UPDATE documents SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, TruncateError(errMsg), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

func (o ops) ListDocuments(ctx context.Context, ownerID string) ([]*Document, error) {
	query := `
		SELECT id, owner_id, name, file_path, status, error, page_count, created_at, updated_at
		FROM documents
	`
	var args []any
	if ownerID != "" {
		query += " WHERE owner_id = ?"
		args = append(args, ownerID)
	}
	query += " ORDER BY created_at"

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.Name, &doc.FilePath, &doc.Status,
			&doc.Error, &doc.PageCount, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (o ops) DeleteDocument(ctx context.Context, id string) error {
	res, err := o.q.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// Chunk operations

// UpsertChunk inserts a chunk or replaces the existing row at the same
// (document_id, chunk_index), which makes re-ingestion idempotent. The row id
// is written back into chunk.ID.
func (o ops) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	now := time.Now()
	err := o.q.QueryRowContext(ctx, `
		INSERT INTO chunks (document_id, chunk_index, content, content_hash, token_count,
		                    page_number, section, language, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id, chunk_index) DO UPDATE SET
			content = excluded.content,
			content_hash = excluded.content_hash,
			token_count = excluded.token_count,
			page_number = excluded.page_number,
			section = excluded.section,
			language = excluded.language,
			updated_at = excluded.updated_at
		RETURNING id
	`, chunk.DocumentID, chunk.ChunkIndex, chunk.Content, chunk.ContentHash[:],
		chunk.TokenCount, chunk.PageNumber, chunk.Section, chunk.Language, now, now).Scan(&chunk.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}
	chunk.UpdatedAt = now
	return nil
}

func (o ops) GetChunk(ctx context.Context, chunkID int64) (*Chunk, error) {
	chunk, err := scanChunk(o.q.QueryRowContext(ctx, chunkSelect+" WHERE id = ?", chunkID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk %d: %w", chunkID, ErrNotFound)
	}
	return chunk, err
}

// GetChunks fetches multiple chunks by id in one query. Missing ids are
// simply absent from the returned map.
func (o ops) GetChunks(ctx context.Context, chunkIDs []int64) (map[int64]*Chunk, error) {
	out := make(map[int64]*Chunk, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(chunkIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}

	rows, err := o.q.QueryContext(ctx, chunkSelect+" WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out[chunk.ID] = chunk
	}
	return out, rows.Err()
}

func (o ops) ListChunksByDocument(ctx context.Context, documentID string) ([]*Chunk, error) {
	rows, err := o.q.QueryContext(ctx,
		chunkSelect+" WHERE document_id = ? ORDER BY chunk_index", documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (o ops) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	_, err := o.q.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

const chunkSelect = `
	SELECT id, document_id, chunk_index, content, content_hash, token_count,
	       page_number, section, language, created_at, updated_at
	FROM chunks
`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(row scanner) (*Chunk, error) {
	var chunk Chunk
	var hash []byte
	err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.Content,
		&hash, &chunk.TokenCount, &chunk.PageNumber, &chunk.Section, &chunk.Language,
		&chunk.CreatedAt, &chunk.UpdatedAt)
	if err != nil {
		return nil, err
	}
	copy(chunk.ContentHash[:], hash)
	return &chunk, nil
}

// Embedding operations

func (o ops) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	now := time.Now()
	err := o.q.QueryRowContext(ctx, `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			degraded = excluded.degraded
		RETURNING id
	`, embedding.ChunkID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, embedding.Degraded, now).Scan(&embedding.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

func (o ops) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	var emb Embedding
	err := o.q.QueryRowContext(ctx, `
		SELECT id, chunk_id, vector, dimension, provider, model, degraded, created_at
		FROM embeddings WHERE chunk_id = ?
	`, chunkID).Scan(&emb.ID, &emb.ChunkID, &emb.Vector, &emb.Dimension,
		&emb.Provider, &emb.Model, &emb.Degraded, &emb.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("embedding for chunk %d: %w", chunkID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &emb, nil
}

// Status operations

func (o ops) GetDocumentStats(ctx context.Context, documentID string) (*DocumentStats, error) {
	doc, err := o.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	stats := &DocumentStats{Document: doc}
	err = o.q.QueryRowContext(ctx, `
		SELECT COUNT(c.id), COALESCE(SUM(c.token_count), 0),
		       COUNT(e.id), COALESCE(SUM(e.degraded), 0)
		FROM chunks c
		LEFT JOIN embeddings e ON e.chunk_id = c.id
		WHERE c.document_id = ?
	`, documentID).Scan(&stats.ChunkCount, &stats.TotalTokenCount,
		&stats.EmbeddingCount, &stats.DegradedCount)
	if err != nil {
		return nil, fmt.Errorf("failed to read document stats: %w", err)
	}
	return stats, nil
}
