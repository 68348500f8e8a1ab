package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/docsearch-mcp/internal/chunker"
	"github.com/dshills/docsearch-mcp/internal/embedder"
	"github.com/dshills/docsearch-mcp/internal/ingest"
	"github.com/dshills/docsearch-mcp/internal/searcher"
	"github.com/dshills/docsearch-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "docsearch-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the default location for the database
	DefaultDBPath = "~/.docsearch"
)

// Server wraps the MCP server with application dependencies.
type Server struct {
	mcp      *server.MCPServer
	store    storage.Store
	provider embedder.Provider
	pipeline *ingest.Pipeline
	searcher *searcher.Searcher
}

// NewServer creates a new MCP server instance backed by a SQLite database
// under dbPath. An empty dbPath selects DefaultDBPath.
func NewServer(dbPath string) (*Server, error) {
	// Expand home directory if needed
	if dbPath == "" || dbPath == DefaultDBPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".docsearch")
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dbFile := filepath.Join(dbPath, "docsearch.db")

	store, err := storage.Open(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// One provider instance, so embeddings cached during ingestion are
	// reused by query embedding.
	provider, err := embedder.NewProviderFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	svc := embedder.NewService(provider, 0)

	ch, err := chunker.New(chunker.DefaultConfig())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}

	pipeline := ingest.New(store, svc, ch, 0)
	srch := searcher.New(store, svc, searcher.NewEmbeddingReranker(store, svc))

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		store:    store,
		provider: provider,
		pipeline: pipeline,
		searcher: srch,
	}
	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer func() {
		_ = s.provider.Close()
		_ = s.store.Close()
	}()
	return server.ServeStdio(s.mcp)
}

// Close releases the server's resources without serving.
func (s *Server) Close() error {
	_ = s.provider.Close()
	return s.store.Close()
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() {
	s.mcp.AddTool(ingestDocumentTool(), s.handleIngestDocument)
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(getDocumentStatusTool(), s.handleGetDocumentStatus)
	s.mcp.AddTool(listDocumentsTool(), s.handleListDocuments)
	s.mcp.AddTool(deleteDocumentTool(), s.handleDeleteDocument)
}
