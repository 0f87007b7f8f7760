// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package smartproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/toolgate/pkg/gateway"
	"github.com/stacklok/toolgate/pkg/logger"
)

const (
	// reconcileBatchSize keeps embedding requests well under the
	// client-enforced ceiling of 100 texts per request.
	reconcileBatchSize = 50

	// reconcileBatchPause spaces batches out for rate-limited providers.
	reconcileBatchPause = 100 * time.Millisecond
)

// canonicalEmbeddingText builds the deterministic text fed to the
// embedding model for one tool. It is the sole basis for staleness
// detection: any byte change regenerates the embedding.
func canonicalEmbeddingText(t gateway.BoundTool, cfg TruncationConfig) string {
	description := truncateDescription(t.Tool.Description, cfg)
	if description == "" {
		description = "No description"
	}

	params := parameterDescriptions(t.Tool)
	if params == "" {
		params = "none"
	}

	return fmt.Sprintf("%s: %s\nParameters: %s", t.OriginalName, description, params)
}

// parameterDescriptions joins the description of every input-schema
// property, newline-separated, in property-name order for determinism.
func parameterDescriptions(tool mcp.Tool) string {
	props := tool.InputSchema.Properties
	if len(props) == 0 && len(tool.RawInputSchema) > 0 {
		var schema struct {
			Properties map[string]any `json:"properties"`
		}
		if err := json.Unmarshal(tool.RawInputSchema, &schema); err == nil {
			props = schema.Properties
		}
	}
	if len(props) == 0 {
		return ""
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	var descriptions []string
	for _, name := range names {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		if d, ok := prop["description"].(string); ok && d != "" {
			descriptions = append(descriptions, d)
		}
	}
	return strings.Join(descriptions, "\n")
}

// reconcileEmbeddings brings the persisted embedding set in line with
// the snapshot's canonical texts. Only stale or missing tools are
// regenerated; the check is idempotent, so partial progress from a
// cancelled run is picked up by the next bind. Failures log and
// downgrade the session to keyword search instead of propagating.
func (p *SmartProxy) reconcileEmbeddings(ctx context.Context, snap *snapshot) {
	requested := make([]gateway.EmbeddingRequest, 0, len(snap.entries))
	textByUUID := make(map[uuid.UUID]string, len(snap.entries))
	for _, entry := range snap.entries {
		id := entry.tool.ToolUUID
		if id == uuid.Nil {
			continue
		}
		text := canonicalEmbeddingText(entry.tool, p.cfg.Truncation)
		requested = append(requested, gateway.EmbeddingRequest{ToolUUID: id, Text: text})
		textByUUID[id] = text
	}
	if len(requested) == 0 {
		return
	}

	model := p.embedder.Model()

	stale, err := p.repo.ToolsNeedingEmbeddings(ctx, requested, p.namespace, model)
	if err != nil {
		p.downgrade("staleness check failed", err)
		return
	}
	if len(stale) == 0 {
		logger.Debugf("Embeddings up to date for namespace %s (%d tools)", p.namespace, len(requested))
		return
	}

	logger.Infof("Regenerating %d of %d embeddings for namespace %s", len(stale), len(requested), p.namespace)

	for start := 0; start < len(stale); start += reconcileBatchSize {
		if start > 0 {
			select {
			case <-ctx.Done():
				logger.Warnf("Embedding reconciliation cancelled after %d of %d tools", start, len(stale))
				return
			case <-time.After(reconcileBatchPause):
			}
		}

		end := start + reconcileBatchSize
		if end > len(stale) {
			end = len(stale)
		}
		batch := stale[start:end]

		texts := make([]string, len(batch))
		for i, id := range batch {
			texts[i] = textByUUID[id]
		}

		vectors, err := p.embedder.GenerateEmbeddings(ctx, texts)
		if err != nil {
			p.downgrade("embedding generation failed", err)
			return
		}
		if len(vectors) != len(batch) {
			p.downgrade("embedding generation failed",
				fmt.Errorf("got %d vectors for %d texts", len(vectors), len(batch)))
			return
		}

		records := make([]gateway.EmbeddingRecord, len(batch))
		for i, id := range batch {
			records[i] = gateway.EmbeddingRecord{
				ToolUUID:      id,
				NamespaceUUID: p.namespace,
				ModelName:     model,
				Dimensions:    len(vectors[i]),
				Embedding:     vectors[i],
				Text:          texts[i],
			}
		}

		if err := p.repo.Upsert(ctx, records); err != nil {
			p.downgrade("embedding upsert failed", err)
			return
		}
	}
}

// downgrade pins the session to keyword search after a vector-path
// failure. The lexical index is rebuilt on every bind, so the session
// stays fully serviceable.
func (p *SmartProxy) downgrade(reason string, err error) {
	logger.Warnf("Downgrading namespace %s to keyword search: %s: %v", p.namespace, reason, err)
	p.vectorDown.Store(true)
}

// vectorDiscover serves one discover call from the vector store. It
// over-fetches twice the configured cap for pruning headroom, drops
// results whose tool was unbound since embedding (a benign race), and
// applies the dynamic-limit selector in store order. Errors raise to
// the orchestrator, which downgrades to lexical for the session.
func (p *SmartProxy) vectorDiscover(ctx context.Context, snap *snapshot, queryText string) (string, error) {
	queryVector, err := p.embedder.GenerateSingleEmbedding(ctx, queryText)
	if err != nil {
		return "", err
	}

	similar, err := p.repo.FindSimilar(ctx, p.namespace, p.embedder.Model(), queryVector, 2*p.cfg.DynamicLimit.MaxResults)
	if err != nil {
		return "", err
	}

	descriptors := make([]toolDescriptor, 0, len(similar))
	scores := make([]float64, 0, len(similar))
	for _, s := range similar {
		entry, ok := snap.byUUID[s.ToolUUID]
		if !ok {
			logger.Debugf("Dropping similarity result for unbound tool %s", s.ToolUUID)
			continue
		}
		descriptors = append(descriptors, descriptorOf(entry.tool))
		scores = append(scores, s.Similarity)
	}

	keep := truncateAtScoreDrop(scores, p.cfg.DynamicLimit)
	return marshalDescriptors(descriptors[:keep])
}
