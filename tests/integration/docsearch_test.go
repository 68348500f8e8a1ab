package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/dshills/docsearch-mcp/internal/chunker"
	"github.com/dshills/docsearch-mcp/internal/embedder"
	"github.com/dshills/docsearch-mcp/internal/ingest"
	"github.com/dshills/docsearch-mcp/internal/searcher"
	"github.com/dshills/docsearch-mcp/internal/storage"
	"github.com/dshills/docsearch-mcp/pkg/logger"
)

// DocSearchTestSuite exercises the full flow: files on disk through
// extraction, chunking, embedding, and persistence, then queries back out.
type DocSearchTestSuite struct {
	suite.Suite
	ctx      context.Context
	store    *storage.SQLiteStore
	pipeline *ingest.Pipeline
	searcher *searcher.Searcher
	docsDir  string
}

func (s *DocSearchTestSuite) SetupSuite() {
	s.ctx = logger.WithContext(context.Background(), logger.Nop())

	dbFile := filepath.Join(s.T().TempDir(), "docsearch.db")
	store, err := storage.Open(dbFile)
	s.Require().NoError(err)
	s.store = store

	provider, err := embedder.NewLocalProvider(embedder.NewCache(1000))
	s.Require().NoError(err)
	svc := embedder.NewService(provider, 0)

	cfg := chunker.DefaultConfig()
	cfg.DetectLanguage = false
	ch, err := chunker.New(cfg)
	s.Require().NoError(err)

	s.pipeline = ingest.New(store, svc, ch, 2)
	s.searcher = searcher.New(store, svc, searcher.NewEmbeddingReranker(store, svc))

	s.docsDir = s.T().TempDir()
	s.writeDoc("handbook.txt",
		"# Employee Handbook\n\n"+
			"## Time Off\n\n"+
			strings.Repeat("Vacation days accrue monthly and roll over once per year. ", 30)+
			"\n\n## Equipment\n\n"+
			strings.Repeat("Laptops are replaced on a three year cycle. ", 30))
	s.writeDoc("recipes.txt",
		"# Recipes\n\n"+
			strings.Repeat("Simmer the tomato sauce slowly and season the pasta water. ", 30))
}

func (s *DocSearchTestSuite) TearDownSuite() {
	s.Require().NoError(s.store.Close())
}

func (s *DocSearchTestSuite) writeDoc(name, content string) {
	path := filepath.Join(s.docsDir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
}

func (s *DocSearchTestSuite) TestEndToEnd() {
	paths := []string{
		filepath.Join(s.docsDir, "handbook.txt"),
		filepath.Join(s.docsDir, "recipes.txt"),
	}

	results := s.pipeline.IngestFiles(s.ctx, paths, "hr-team")
	s.Require().Len(results, 2)
	for _, r := range results {
		s.Require().NoError(r.Err, r.Path)
		s.Equal(storage.StatusProcessed, r.Document.Status)
	}

	s.Run("every chunk has an embedding", func() {
		for _, r := range results {
			stats, err := s.store.GetDocumentStats(s.ctx, r.Document.ID)
			s.Require().NoError(err)
			s.Positive(stats.ChunkCount)
			s.Equal(stats.ChunkCount, stats.EmbeddingCount)
			s.Zero(stats.DegradedCount)
			s.Positive(stats.TotalTokenCount)
		}
	})

	s.Run("hybrid search finds the right document", func() {
		found, err := s.searcher.Search(s.ctx, searcher.Request{
			Query:  "vacation accrual",
			Hybrid: true,
		})
		s.Require().NoError(err)
		s.Require().NotEmpty(found)
		s.Equal(results[0].Document.ID, found[0].DocumentID)
		s.Equal(1, found[0].Rank)
	})

	s.Run("section metadata survives the round trip", func() {
		found, err := s.searcher.Search(s.ctx, searcher.Request{
			Query:  "laptop replacement",
			Hybrid: true,
		})
		s.Require().NoError(err)
		s.Require().NotEmpty(found)

		var sections []string
		for _, r := range found {
			if sec, ok := r.Metadata["section"].(string); ok {
				sections = append(sections, sec)
			}
		}
		s.NotEmpty(sections, "results should carry section metadata")
	})

	s.Run("owner filter excludes other owners", func() {
		found, err := s.searcher.Search(s.ctx, searcher.Request{
			Query:   "vacation accrual",
			OwnerID: "someone-else",
			Hybrid:  true,
		})
		s.Require().NoError(err)
		s.Empty(found)
	})

	s.Run("document filter narrows results", func() {
		found, err := s.searcher.Search(s.ctx, searcher.Request{
			Query:       "tomato sauce",
			DocumentIDs: []string{results[1].Document.ID},
			Hybrid:      true,
		})
		s.Require().NoError(err)
		s.Require().NotEmpty(found)
		for _, r := range found {
			s.Equal(results[1].Document.ID, r.DocumentID)
		}
	})

	s.Run("reingest does not duplicate chunks", func() {
		before, err := s.store.ListChunksByDocument(s.ctx, results[0].Document.ID)
		s.Require().NoError(err)

		_, err = s.pipeline.Reingest(s.ctx, results[0].Document.ID)
		s.Require().NoError(err)

		after, err := s.store.ListChunksByDocument(s.ctx, results[0].Document.ID)
		s.Require().NoError(err)
		s.Equal(len(before), len(after))
	})

	s.Run("delete removes chunks and embeddings", func() {
		s.Require().NoError(s.store.DeleteDocument(s.ctx, results[1].Document.ID))

		chunks, err := s.store.ListChunksByDocument(s.ctx, results[1].Document.ID)
		s.Require().NoError(err)
		s.Empty(chunks)

		_, err = s.store.GetDocumentStats(s.ctx, results[1].Document.ID)
		s.ErrorIs(err, storage.ErrNotFound)
	})
}

func TestDocSearchSuite(t *testing.T) {
	suite.Run(t, new(DocSearchTestSuite))
}
