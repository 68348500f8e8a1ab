package ingest

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/docsearch-mcp/internal/chunker"
	"github.com/dshills/docsearch-mcp/internal/embedder"
	"github.com/dshills/docsearch-mcp/internal/extract"
	"github.com/dshills/docsearch-mcp/internal/storage"
	"github.com/dshills/docsearch-mcp/pkg/logger"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// DefaultWorkers is the number of documents ingested concurrently by
// IngestFiles.
const DefaultWorkers = 4

// persistBatchSize is how many chunks are embedded and committed per
// transaction. Each committed batch is a durable checkpoint: a crash
// mid-document leaves earlier batches persisted, and the chunk-index upsert
// makes re-running the document converge instead of duplicating.
const persistBatchSize = embedder.DefaultBatchSize

// Pipeline drives a document from file to searchable chunks: extract text,
// chunk it, embed the chunks, and persist everything with status tracking.
type Pipeline struct {
	store    storage.Store
	embedder *embedder.Service
	chunker  *chunker.Chunker
	workers  int
}

// New creates an ingestion pipeline. workers <= 0 selects DefaultWorkers.
func New(store storage.Store, svc *embedder.Service, ch *chunker.Chunker, workers int) *Pipeline {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pipeline{store: store, embedder: svc, chunker: ch, workers: workers}
}

// Result pairs an ingested document with its outcome.
type Result struct {
	Path     string
	Document *storage.Document
	Err      error
}

// IngestFile ingests a single file for ownerID and returns the document
// record. The document moves pending → processing → processed, or → failed
// with a truncated error message; the returned error mirrors the failure.
func (p *Pipeline) IngestFile(ctx context.Context, path, ownerID string) (*storage.Document, error) {
	doc := &storage.Document{
		OwnerID:  ownerID,
		Name:     filepath.Base(path),
		FilePath: path,
		Status:   storage.StatusPending,
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to register document: %w", err)
	}

	if err := p.process(ctx, doc); err != nil {
		p.fail(ctx, doc, err)
		return doc, err
	}

	if err := p.store.UpdateDocumentStatus(ctx, doc.ID, storage.StatusProcessed, ""); err != nil {
		return doc, err
	}
	doc.Status = storage.StatusProcessed
	return doc, nil
}

// Reingest re-runs extraction and embedding for an existing document record.
// Chunks upsert onto their (document, index) rows, so a previously failed or
// partially ingested document converges to a complete state.
func (p *Pipeline) Reingest(ctx context.Context, documentID string) (*storage.Document, error) {
	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if err := p.process(ctx, doc); err != nil {
		p.fail(ctx, doc, err)
		return doc, err
	}

	if err := p.store.UpdateDocumentStatus(ctx, doc.ID, storage.StatusProcessed, ""); err != nil {
		return doc, err
	}
	doc.Status = storage.StatusProcessed
	return doc, nil
}

// IngestFiles ingests multiple files concurrently with a bounded worker
// pool. One file failing does not stop the others; per-file outcomes are
// returned in input order.
func (p *Pipeline) IngestFiles(ctx context.Context, paths []string, ownerID string) []Result {
	results := make([]Result, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range paths {
		g.Go(func() error {
			doc, err := p.IngestFile(ctx, path, ownerID)
			results[i] = Result{Path: path, Document: doc, Err: err}
			// Per-file errors are reported in results, not propagated, so a
			// bad file cannot cancel its siblings.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// process runs the extract → chunk → embed → persist stages for doc.
func (p *Pipeline) process(ctx context.Context, doc *storage.Document) error {
	log := logger.FromContext(ctx).With("document", doc.ID, "name", doc.Name)

	if err := p.store.UpdateDocumentStatus(ctx, doc.ID, storage.StatusProcessing, ""); err != nil {
		return err
	}
	doc.Status = storage.StatusProcessing

	pages, err := extract.File(ctx, doc.FilePath)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	var chunks []*types.TextChunk
	for _, page := range pages {
		pageChunks, err := p.chunker.ChunkPage(ctx, page.Text, doc.ID, page.Number, len(chunks), nil)
		if err != nil {
			return fmt.Errorf("chunking failed: %w", err)
		}
		chunks = append(chunks, pageChunks...)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no extractable text in %s", types.ErrEmptyDocument, doc.Name)
	}

	doc.PageCount = len(pages)
	if err := p.store.UpdateDocument(ctx, doc); err != nil {
		return err
	}

	log.Info("chunked document", "pages", len(pages), "chunks", len(chunks))

	for start := 0; start < len(chunks); start += persistBatchSize {
		end := start + persistBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := p.persistBatch(ctx, chunks[start:end]); err != nil {
			return err
		}
	}

	log.Info("ingested document", "chunks", len(chunks))
	return nil
}

// persistBatch embeds one batch of chunks and commits chunks plus embeddings
// in a single transaction.
func (p *Pipeline) persistBatch(ctx context.Context, chunks []*types.TextChunk) error {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embedded, err := p.embedder.Embed(ctx, embedder.Request{Texts: texts})
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	degraded := make(map[int]bool, len(embedded.Degraded))
	for _, idx := range embedded.Degraded {
		degraded[idx] = true
	}

	tx, err := p.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, chunk := range chunks {
		row := storage.FromTextChunk(chunk)
		if err := tx.UpsertChunk(ctx, row); err != nil {
			return err
		}
		chunk.ID = row.ID

		if err := tx.UpsertEmbedding(ctx, &storage.Embedding{
			ChunkID:   row.ID,
			Vector:    storage.SerializeVector(embedded.Vectors[i]),
			Dimension: embedded.Dimension,
			Provider:  embedded.Provider,
			Model:     embedded.Model,
			Degraded:  degraded[i],
		}); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// fail records the failure on the document; the status write itself failing
// is only logged, the original error matters more.
func (p *Pipeline) fail(ctx context.Context, doc *storage.Document, cause error) {
	doc.Status = storage.StatusFailed
	doc.Error = storage.TruncateError(cause.Error())
	if err := p.store.UpdateDocumentStatus(ctx, doc.ID, storage.StatusFailed, cause.Error()); err != nil {
		logger.FromContext(ctx).Error("failed to record document failure",
			"document", doc.ID, "error", err)
	}
}
