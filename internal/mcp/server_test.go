package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docsearch-mcp/internal/embedder"
)

func newTestServer(t *testing.T) *Server {
	t.Setenv(embedder.EnvProvider, embedder.ProviderLocal)

	server, err := NewServer(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	return server
}

func callReq(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// resultJSON decodes the text payload of a tool result.
func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	return decoded
}

func errorCode(t *testing.T, err error) int {
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	return mcpErr.Code
}

func writeDoc(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewServer_Components(t *testing.T) {
	server := newTestServer(t)

	assert.NotNil(t, server.mcp)
	assert.NotNil(t, server.store)
	assert.NotNil(t, server.provider)
	assert.NotNil(t, server.pipeline)
	assert.NotNil(t, server.searcher)
}

func TestIngestSearchDeleteRoundTrip(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	path := writeDoc(t, "policy.txt",
		"# Vacation Policy\n\n"+strings.Repeat("Employees accrue vacation days every month. ", 40))

	result, err := server.handleIngestDocument(ctx, callReq("ingest_document", map[string]interface{}{
		"path":     path,
		"owner_id": "alice",
	}))
	require.NoError(t, err)

	ingested := resultJSON(t, result)
	doc, ok := ingested["document"].(map[string]interface{})
	require.True(t, ok)
	documentID, _ := doc["id"].(string)
	require.NotEmpty(t, documentID)
	assert.Equal(t, "processed", doc["status"])
	assert.Equal(t, "alice", doc["owner_id"])

	stats, ok := ingested["statistics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, stats["chunks"], stats["embeddings"])

	t.Run("get_document_status", func(t *testing.T) {
		result, err := server.handleGetDocumentStatus(ctx, callReq("get_document_status", map[string]interface{}{
			"document_id": documentID,
		}))
		require.NoError(t, err)

		status := resultJSON(t, result)
		doc := status["document"].(map[string]interface{})
		assert.Equal(t, documentID, doc["id"])
		assert.Equal(t, "processed", doc["status"])
	})

	t.Run("search_documents", func(t *testing.T) {
		result, err := server.handleSearchDocuments(ctx, callReq("search_documents", map[string]interface{}{
			"query":    "vacation days",
			"owner_id": "alice",
		}))
		require.NoError(t, err)

		response := resultJSON(t, result)
		results := response["results"].([]interface{})
		require.NotEmpty(t, results)

		first := results[0].(map[string]interface{})
		assert.Equal(t, documentID, first["document_id"])
		assert.Equal(t, float64(1), first["rank"])
		assert.NotEmpty(t, first["text"])
	})

	t.Run("list_documents", func(t *testing.T) {
		result, err := server.handleListDocuments(ctx, callReq("list_documents", map[string]interface{}{
			"owner_id": "alice",
		}))
		require.NoError(t, err)

		response := resultJSON(t, result)
		assert.Equal(t, float64(1), response["count"])
	})

	t.Run("delete_document", func(t *testing.T) {
		result, err := server.handleDeleteDocument(ctx, callReq("delete_document", map[string]interface{}{
			"document_id": documentID,
		}))
		require.NoError(t, err)

		response := resultJSON(t, result)
		assert.Equal(t, true, response["deleted"])

		_, err = server.handleGetDocumentStatus(ctx, callReq("get_document_status", map[string]interface{}{
			"document_id": documentID,
		}))
		assert.Equal(t, ErrorCodeDocumentNotFound, errorCode(t, err))
	})
}

func TestIngestDocument_Validation(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	t.Run("missing path", func(t *testing.T) {
		_, err := server.handleIngestDocument(ctx, callReq("ingest_document", map[string]interface{}{}))
		assert.Equal(t, ErrorCodeInvalidParams, errorCode(t, err))
	})

	t.Run("relative path", func(t *testing.T) {
		_, err := server.handleIngestDocument(ctx, callReq("ingest_document", map[string]interface{}{
			"path": "relative/doc.txt",
		}))
		assert.Equal(t, ErrorCodeInvalidParams, errorCode(t, err))
	})

	t.Run("nonexistent path", func(t *testing.T) {
		_, err := server.handleIngestDocument(ctx, callReq("ingest_document", map[string]interface{}{
			"path": filepath.Join(t.TempDir(), "gone.txt"),
		}))
		assert.Equal(t, ErrorCodeInvalidParams, errorCode(t, err))
	})

	t.Run("unsupported type", func(t *testing.T) {
		path := writeDoc(t, "image.png", "binary-ish")
		_, err := server.handleIngestDocument(ctx, callReq("ingest_document", map[string]interface{}{
			"path": path,
		}))
		assert.Equal(t, ErrorCodeUnsupportedDocument, errorCode(t, err))
	})
}

func TestSearchDocuments_Validation(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	t.Run("missing query", func(t *testing.T) {
		_, err := server.handleSearchDocuments(ctx, callReq("search_documents", map[string]interface{}{}))
		assert.Equal(t, ErrorCodeEmptyQuery, errorCode(t, err))
	})

	t.Run("whitespace query", func(t *testing.T) {
		_, err := server.handleSearchDocuments(ctx, callReq("search_documents", map[string]interface{}{
			"query": "   ",
		}))
		assert.Equal(t, ErrorCodeEmptyQuery, errorCode(t, err))
	})

	t.Run("top_k out of range", func(t *testing.T) {
		_, err := server.handleSearchDocuments(ctx, callReq("search_documents", map[string]interface{}{
			"query": "anything",
			"top_k": float64(500),
		}))
		assert.Equal(t, ErrorCodeInvalidParams, errorCode(t, err))
	})

	t.Run("bad search_mode", func(t *testing.T) {
		_, err := server.handleSearchDocuments(ctx, callReq("search_documents", map[string]interface{}{
			"query":       "anything",
			"search_mode": "keyword",
		}))
		assert.Equal(t, ErrorCodeInvalidParams, errorCode(t, err))
	})

	t.Run("empty corpus returns no results", func(t *testing.T) {
		result, err := server.handleSearchDocuments(ctx, callReq("search_documents", map[string]interface{}{
			"query": "nothing ingested yet",
		}))
		require.NoError(t, err)

		response := resultJSON(t, result)
		assert.Equal(t, float64(0), response["count"])
	})
}

func TestGetDocumentStatus_NotFound(t *testing.T) {
	server := newTestServer(t)

	_, err := server.handleGetDocumentStatus(context.Background(),
		callReq("get_document_status", map[string]interface{}{
			"document_id": "no-such-document",
		}))
	assert.Equal(t, ErrorCodeDocumentNotFound, errorCode(t, err))
}
