// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gateway contains the shared domain types used across the smart
// proxy subpackages.
package gateway

import (
	"context"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// BoundTool is one entry of the batch handed to the smart proxy at
// namespace-bind time. The descriptor has already been filtered, renamed
// and rewritten by the upstream transformer; OriginalName is the name the
// owning downstream server knows the tool by.
type BoundTool struct {
	// ServerName is the namespace-local name of the downstream server.
	ServerName string

	// OriginalName is the tool name as known by the downstream server.
	// It is used when forwarding calls and forms the in-memory key
	// together with ServerName.
	OriginalName string

	// Tool is the post-transform descriptor advertised to clients.
	Tool mcp.Tool

	// ConnectionID identifies the owning downstream connection. The
	// connection itself is borrowed from the external connection manager;
	// the smart proxy never owns it.
	ConnectionID string

	// ToolUUID is the stable identifier assigned by the catalogue store.
	// It is the sole key joining in-memory state to persisted embeddings.
	ToolUUID uuid.UUID
}

// UniqueID returns the in-memory key for this tool.
func (b BoundTool) UniqueID() string {
	return b.ServerName + "::" + b.OriginalName
}

// ToolCaller invokes tools on one downstream connection.
// Errors from the downstream are treated as opaque and propagated.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error)
}

// ConnectionResolver resolves an opaque connection ID to a live downstream
// connection. Implemented by the external connection manager, which
// guarantees the handle stays valid for the lifetime of the binding.
type ConnectionResolver interface {
	Resolve(connectionID string) (ToolCaller, bool)
}

// EmbeddingRecord is one row to persist in the vector store.
type EmbeddingRecord struct {
	ToolUUID      uuid.UUID
	NamespaceUUID uuid.UUID
	ModelName     string
	Dimensions    int
	Embedding     []float32
	Text          string
}

// EmbeddingRequest names a tool and the canonical text it should be
// embedded from, for staleness checks.
type EmbeddingRequest struct {
	ToolUUID uuid.UUID
	Text     string
}

// SimilarTool is one similarity-search result from the vector store.
type SimilarTool struct {
	ToolUUID   uuid.UUID
	Text       string
	Similarity float64
}

// EmbeddingRepository persists tool embeddings and serves similarity
// queries. Backed by a relational store with a vector extension.
type EmbeddingRepository interface {
	// Upsert inserts the rows; on conflict on
	// (tool_uuid, namespace_uuid, model_name) the embedding, text,
	// dimensions and updated_at are replaced.
	Upsert(ctx context.Context, records []EmbeddingRecord) error

	// FindSimilar returns the limit nearest rows for the namespace and
	// model by cosine distance, with similarity = 1 - distance.
	// Tie order is implementation-defined.
	FindSimilar(ctx context.Context, namespace uuid.UUID, model string, query []float32, limit int) ([]SimilarTool, error)

	// ToolsNeedingEmbeddings returns every requested tool UUID that has
	// no stored row, or whose stored text differs byte-for-byte from the
	// requested text.
	ToolsNeedingEmbeddings(ctx context.Context, requested []EmbeddingRequest, namespace uuid.UUID, model string) ([]uuid.UUID, error)

	// DeleteByToolUUIDs removes all embeddings for the given tools.
	DeleteByToolUUIDs(ctx context.Context, toolUUIDs []uuid.UUID) error

	// DeleteByNamespace removes all embeddings for a namespace,
	// optionally scoped to one model. An empty model matches all models.
	DeleteByNamespace(ctx context.Context, namespace uuid.UUID, model string) error

	// DeleteByToolAndNamespace removes one tool's embeddings in one namespace.
	DeleteByToolAndNamespace(ctx context.Context, toolUUID, namespace uuid.UUID) error

	// CountByNamespace returns the number of embeddings stored for a namespace.
	CountByNamespace(ctx context.Context, namespace uuid.UUID) (int64, error)

	// HasEmbeddings reports whether any embedding exists for a namespace.
	HasEmbeddings(ctx context.Context, namespace uuid.UUID) (bool, error)
}

// EmbeddingClient generates vector embeddings through an external,
// OpenAI-compatible embedding service.
type EmbeddingClient interface {
	// GenerateEmbeddings embeds a batch of texts. Empty input returns
	// empty output. Inputs over the batch ceiling fail with
	// ErrBatchTooLarge; the caller is responsible for chunking.
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// GenerateSingleEmbedding embeds one text.
	GenerateSingleEmbedding(ctx context.Context, text string) ([]float32, error)

	// ModelDimensions returns the static dimension for the configured
	// model. The authoritative dimension is always the length of the
	// vector actually returned.
	ModelDimensions() int

	// Model returns the configured model name.
	Model() string
}
