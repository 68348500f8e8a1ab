package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// ingestDocumentTool returns the tool definition for ingest_document
func ingestDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_document",
		Description: "Ingest a document file (PDF or plain text) to make it searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the document file (.pdf, .txt, .md, and similar)",
				},
				"owner_id": map[string]interface{}{
					"type":        "string",
					"description": "Owner the document belongs to; searches can be scoped per owner",
					"default":     "",
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Search ingested documents with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"owner_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one owner's documents",
				},
				"document_ids": map[string]interface{}{
					"type":        "array",
					"description": "Restrict results to specific document ids",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (vector + keyword) or vector (semantic only)",
					"enum":        []string{"hybrid", "vector"},
					"default":     "hybrid",
				},
				"use_reranker": map[string]interface{}{
					"type":        "boolean",
					"description": "Re-score the top candidates by direct query similarity before ranking",
					"default":     false,
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Minimum fused score threshold (0.0-1.0); lower-scoring results are dropped",
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getDocumentStatusTool returns the tool definition for get_document_status
func getDocumentStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_document_status",
		Description: "Query ingestion status and statistics for a document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Document id returned by ingest_document",
				},
			},
			Required: []string{"document_id"},
		},
	}
}

// listDocumentsTool returns the tool definition for list_documents
func listDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_documents",
		Description: "List ingested documents, optionally scoped to one owner",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"owner_id": map[string]interface{}{
					"type":        "string",
					"description": "Only list documents belonging to this owner",
				},
			},
		},
	}
}

// deleteDocumentTool returns the tool definition for delete_document
func deleteDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_document",
		Description: "Delete a document and all of its chunks and embeddings",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Document id returned by ingest_document",
				},
			},
			Required: []string{"document_id"},
		},
	}
}
