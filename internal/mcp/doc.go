// Package mcp implements the Model Context Protocol (MCP) server for DocSearch.
//
// The MCP server exposes five tools to AI assistants:
//   - ingest_document: Ingest a PDF or text file for search
//   - search_documents: Search ingested documents with natural language queries
//   - get_document_status: Check ingestion status and statistics for a document
//   - list_documents: List ingested documents
//   - delete_document: Remove a document with its chunks and embeddings
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server communicates with MCP clients via standard input/output,
// making it simple to integrate with any MCP-compatible client.
//
// # Tool: ingest_document
//
// Ingest a document file to make it searchable:
//
//	Request:
//	{
//	  "name": "ingest_document",
//	  "arguments": {
//	    "path": "/docs/handbook.pdf",
//	    "owner_id": "alice"
//	  }
//	}
//
//	Response:
//	{
//	  "document": {
//	    "id": "7f9c...",
//	    "name": "handbook.pdf",
//	    "status": "processed",
//	    "pages": 42
//	  },
//	  "statistics": {
//	    "chunks": 187,
//	    "embeddings": 187,
//	    "degraded_embeddings": 0,
//	    "total_tokens": 46210
//	  }
//	}
//
// # Tool: search_documents
//
// Search ingested documents semantically or by keywords:
//
//	Request:
//	{
//	  "name": "search_documents",
//	  "arguments": {
//	    "query": "vacation policy for new employees",
//	    "owner_id": "alice",
//	    "top_k": 5,
//	    "search_mode": "hybrid"
//	  }
//	}
//
//	Response:
//	{
//	  "query": "vacation policy for new employees",
//	  "count": 5,
//	  "results": [
//	    {
//	      "rank": 1,
//	      "score": 0.87,
//	      "chunk_id": 412,
//	      "document_id": "7f9c...",
//	      "text": "New employees accrue vacation at ...",
//	      "metadata": {"page": 12, "section": "Time Off"}
//	    }
//	  ]
//	}
//
// # Tool: get_document_status
//
// Check a document's ingestion state:
//
//	Request:
//	{
//	  "name": "get_document_status",
//	  "arguments": {
//	    "document_id": "7f9c..."
//	  }
//	}
//
// The response mirrors ingest_document's shape. A failed document carries its
// truncated error message in document.error.
//
// # Error Handling
//
// The server returns standard JSON-RPC error responses:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "Invalid params",
//	    "data": {
//	      "param": "path",
//	      "reason": "path does not exist"
//	    }
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Document not found
//   - -32002: Ingestion failed
//   - -32003: Unsupported document type
//   - -32004: Query parameter is empty
//
// # MCP Client Configuration
//
// Configure in an MCP client's settings:
//
//	{
//	  "mcpServers": {
//	    "docsearch": {
//	      "command": "/usr/local/bin/docsearch",
//	      "args": ["serve"],
//	      "env": {
//	        "JINA_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
//
// # Logging
//
// The server logs to stderr; stdout is reserved for MCP protocol traffic.
package mcp
