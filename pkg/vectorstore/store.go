// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package vectorstore persists tool embeddings in Postgres with the
// pgvector extension and serves cosine-similarity queries over them.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stacklok/toolgate/pkg/gateway"
)

// ToolEmbedding is one persisted embedding row. At most one row exists
// per (tool_uuid, namespace_uuid, model_name); embedding_text is exactly
// the text submitted to the embedding model to produce embedding.
type ToolEmbedding struct {
	UUID                uuid.UUID       `gorm:"column:uuid;type:uuid;primaryKey;default:gen_random_uuid()"`
	ToolUUID            uuid.UUID       `gorm:"column:tool_uuid;type:uuid;not null"`
	NamespaceUUID       uuid.UUID       `gorm:"column:namespace_uuid;type:uuid;not null"`
	ModelName           string          `gorm:"column:model_name;not null;default:'BAAI/bge-m3'"`
	EmbeddingDimensions int             `gorm:"column:embedding_dimensions;not null"`
	Embedding           pgvector.Vector `gorm:"column:embedding;type:vector(1024);not null"`
	EmbeddingText       string          `gorm:"column:embedding_text;not null"`
	CreatedAt           time.Time       `gorm:"column:created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at"`
}

// TableName sets the gorm table name.
func (ToolEmbedding) TableName() string {
	return "tool_embeddings"
}

// Store implements gateway.EmbeddingRepository on top of gorm/pgvector.
type Store struct {
	db *gorm.DB
}

// New creates a store over an open gorm connection. The schema is managed
// by Migrate, not by the store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Upsert inserts the records; on conflict on
// (tool_uuid, namespace_uuid, model_name) the embedding, text, dimensions
// and updated_at are replaced.
func (s *Store) Upsert(ctx context.Context, records []gateway.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]ToolEmbedding, 0, len(records))
	for _, r := range records {
		rows = append(rows, ToolEmbedding{
			ToolUUID:            r.ToolUUID,
			NamespaceUUID:       r.NamespaceUUID,
			ModelName:           r.ModelName,
			EmbeddingDimensions: r.Dimensions,
			Embedding:           pgvector.NewVector(r.Embedding),
			EmbeddingText:       r.Text,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tool_uuid"}, {Name: "namespace_uuid"}, {Name: "model_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"embedding", "embedding_text", "embedding_dimensions", "updated_at",
			}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %d embeddings: %w", len(rows), err)
	}
	return nil
}

// FindSimilar returns the limit nearest rows for the namespace and model,
// ordered ascending by cosine distance, with similarity = 1 - distance.
// Tie order is the store's; callers must not depend on it.
func (s *Store) FindSimilar(
	ctx context.Context, namespace uuid.UUID, model string, query []float32, limit int,
) ([]gateway.SimilarTool, error) {
	queryVec := pgvector.NewVector(query)

	var rows []struct {
		ToolUUID      uuid.UUID `gorm:"column:tool_uuid"`
		EmbeddingText string    `gorm:"column:embedding_text"`
		Similarity    float64   `gorm:"column:similarity"`
	}

	err := s.db.WithContext(ctx).
		Raw(`SELECT tool_uuid, embedding_text, 1 - (embedding <=> ?) AS similarity
			 FROM tool_embeddings
			 WHERE namespace_uuid = ? AND model_name = ?
			 ORDER BY embedding <=> ?
			 LIMIT ?`, queryVec, namespace, model, queryVec, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}

	results := make([]gateway.SimilarTool, 0, len(rows))
	for _, r := range rows {
		results = append(results, gateway.SimilarTool{
			ToolUUID:   r.ToolUUID,
			Text:       r.EmbeddingText,
			Similarity: r.Similarity,
		})
	}
	return results, nil
}

// ToolsNeedingEmbeddings returns every requested tool UUID with no stored
// row or a stored embedding_text that differs byte-for-byte from the
// requested text.
func (s *Store) ToolsNeedingEmbeddings(
	ctx context.Context, requested []gateway.EmbeddingRequest, namespace uuid.UUID, model string,
) ([]uuid.UUID, error) {
	if len(requested) == 0 {
		return nil, nil
	}

	toolUUIDs := make([]uuid.UUID, 0, len(requested))
	for _, r := range requested {
		toolUUIDs = append(toolUUIDs, r.ToolUUID)
	}

	var rows []struct {
		ToolUUID      uuid.UUID `gorm:"column:tool_uuid"`
		EmbeddingText string    `gorm:"column:embedding_text"`
	}
	err := s.db.WithContext(ctx).
		Model(&ToolEmbedding{}).
		Select("tool_uuid", "embedding_text").
		Where("namespace_uuid = ? AND model_name = ? AND tool_uuid IN ?", namespace, model, toolUUIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("staleness query failed: %w", err)
	}

	stored := make(map[uuid.UUID]string, len(rows))
	for _, r := range rows {
		stored[r.ToolUUID] = r.EmbeddingText
	}

	return staleToolUUIDs(requested, stored), nil
}

// staleToolUUIDs is the staleness contract: a tool needs an embedding when
// it has no stored row or its stored text differs from the requested text.
func staleToolUUIDs(requested []gateway.EmbeddingRequest, stored map[uuid.UUID]string) []uuid.UUID {
	var stale []uuid.UUID
	for _, r := range requested {
		text, ok := stored[r.ToolUUID]
		if !ok || text != r.Text {
			stale = append(stale, r.ToolUUID)
		}
	}
	return stale
}

// DeleteByToolUUIDs removes all embeddings for the given tools.
func (s *Store) DeleteByToolUUIDs(ctx context.Context, toolUUIDs []uuid.UUID) error {
	if len(toolUUIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("tool_uuid IN ?", toolUUIDs).
		Delete(&ToolEmbedding{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete embeddings by tool: %w", err)
	}
	return nil
}

// DeleteByNamespace removes all embeddings for a namespace. An empty
// model matches all models.
func (s *Store) DeleteByNamespace(ctx context.Context, namespace uuid.UUID, model string) error {
	q := s.db.WithContext(ctx).Where("namespace_uuid = ?", namespace)
	if model != "" {
		q = q.Where("model_name = ?", model)
	}
	if err := q.Delete(&ToolEmbedding{}).Error; err != nil {
		return fmt.Errorf("failed to delete embeddings for namespace %s: %w", namespace, err)
	}
	return nil
}

// DeleteByToolAndNamespace removes one tool's embeddings in one namespace.
func (s *Store) DeleteByToolAndNamespace(ctx context.Context, toolUUID, namespace uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Where("tool_uuid = ? AND namespace_uuid = ?", toolUUID, namespace).
		Delete(&ToolEmbedding{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete embeddings for tool %s: %w", toolUUID, err)
	}
	return nil
}

// CountByNamespace returns the number of embeddings stored for a namespace.
func (s *Store) CountByNamespace(ctx context.Context, namespace uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ToolEmbedding{}).
		Where("namespace_uuid = ?", namespace).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count embeddings for namespace %s: %w", namespace, err)
	}
	return count, nil
}

// HasEmbeddings reports whether any embedding exists for a namespace.
func (s *Store) HasEmbeddings(ctx context.Context, namespace uuid.UUID) (bool, error) {
	count, err := s.CountByNamespace(ctx, namespace)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
