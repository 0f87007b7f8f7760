// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package vectorstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/stacklok/toolgate/pkg/gateway"
)

func TestStaleToolUUIDs(t *testing.T) {
	t.Parallel()

	current := uuid.New()
	changed := uuid.New()
	missing := uuid.New()

	requested := []gateway.EmbeddingRequest{
		{ToolUUID: current, Text: "get_forecast: Returns the forecast.\nParameters: none"},
		{ToolUUID: changed, Text: "commit: Create a signed commit.\nParameters: none"},
		{ToolUUID: missing, Text: "push: Push to a remote.\nParameters: none"},
	}
	stored := map[uuid.UUID]string{
		current: "get_forecast: Returns the forecast.\nParameters: none",
		changed: "commit: Create a commit.\nParameters: none",
	}

	stale := staleToolUUIDs(requested, stored)
	assert.ElementsMatch(t, []uuid.UUID{changed, missing}, stale)
}

func TestStaleToolUUIDs_AllCurrent(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	requested := []gateway.EmbeddingRequest{{ToolUUID: id, Text: "same"}}
	stored := map[uuid.UUID]string{id: "same"}

	assert.Empty(t, staleToolUUIDs(requested, stored))
}

func TestStaleToolUUIDs_ByteExact(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	requested := []gateway.EmbeddingRequest{{ToolUUID: id, Text: "text with trailing space "}}
	stored := map[uuid.UUID]string{id: "text with trailing space"}

	assert.Equal(t, []uuid.UUID{id}, staleToolUUIDs(requested, stored))
}

func TestToolEmbeddingTableName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "tool_embeddings", ToolEmbedding{}.TableName())
}
