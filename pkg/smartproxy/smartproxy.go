// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package smartproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/toolgate/pkg/gateway"
	"github.com/stacklok/toolgate/pkg/logger"
)

// toolEntry is one bound tool in the in-memory table.
type toolEntry struct {
	tool gateway.BoundTool
}

// snapshot is one immutable published view of a namespace binding: the
// tool table keyed by serverName::originalName, the UUID join index for
// vector results, and the lexical index. Bind swaps the whole snapshot;
// readers operate on the pointer they grabbed for the entire call, so a
// concurrent bind is never observable as a mixed catalogue.
type snapshot struct {
	entries map[string]*toolEntry
	byUUID  map[uuid.UUID]*toolEntry
	index   bleve.Index
}

// SmartProxy owns one namespace binding and exposes the two-operation
// smart surface over it. Bind is the only writer; Discover and Execute
// are readers. The embedding client and repository are injected and may
// be nil, which pins the proxy to keyword search.
type SmartProxy struct {
	cfg       *Config
	namespace uuid.UUID
	resolver  gateway.ConnectionResolver
	embedder  gateway.EmbeddingClient
	repo      gateway.EmbeddingRepository

	mu   sync.RWMutex
	snap *snapshot

	// vectorDown marks the session as downgraded to keyword search after
	// an embedding or vector-store failure. It is never reset: S6-style
	// sessions must not re-attempt the embedding endpoint.
	vectorDown atomic.Bool
}

// New creates a smart proxy for one namespace binding. cfg may be nil
// for all defaults. embedder and repo may be nil; vector search also
// requires a non-nil namespace UUID.
func New(
	cfg *Config,
	namespace uuid.UUID,
	resolver gateway.ConnectionResolver,
	embedder gateway.EmbeddingClient,
	repo gateway.EmbeddingRepository,
) *SmartProxy {
	if cfg == nil {
		cfg = &Config{}
		cfg.SetDefaults()
	}
	return &SmartProxy{
		cfg:       cfg,
		namespace: namespace,
		resolver:  resolver,
		embedder:  embedder,
		repo:      repo,
	}
}

// Bind atomically replaces the in-memory tool table and lexical index
// with the provided set. Re-entrant calls fully supersede prior state.
// In embeddings mode with a configured client and namespace, persisted
// embeddings are reconciled against the canonical texts; reconciliation
// failures log, downgrade the session to keyword, and never fail the bind.
func (p *SmartProxy) Bind(ctx context.Context, tools []gateway.BoundTool) error {
	entries := make(map[string]*toolEntry, len(tools))
	byUUID := make(map[uuid.UUID]*toolEntry, len(tools))
	for i := range tools {
		e := &toolEntry{tool: tools[i]}
		entries[tools[i].UniqueID()] = e
		if tools[i].ToolUUID != uuid.Nil {
			byUUID[tools[i].ToolUUID] = e
		}
	}

	index, err := buildLexicalIndex(tools)
	if err != nil {
		return err
	}

	snap := &snapshot{entries: entries, byUUID: byUUID, index: index}

	p.mu.Lock()
	p.snap = snap
	p.mu.Unlock()

	logger.Infof("Bound %d tools for namespace %s", len(tools), p.namespace)

	if p.vectorConfigured() && !p.vectorDown.Load() {
		p.reconcileEmbeddings(ctx, snap)
	}
	return nil
}

// Discover joins the queries into one composite query and returns a
// JSON-encoded array of {toolId, method, description, inputSchema}
// descriptors. Vector discovery is attempted when the endpoint is in
// embeddings mode and the session has not been downgraded; any failure
// on that path logs, downgrades the session and falls through to the
// lexical backend. An empty catalogue yields an empty array.
func (p *SmartProxy) Discover(ctx context.Context, queries []string) (string, error) {
	snap := p.currentSnapshot()
	if snap == nil || len(snap.entries) == 0 {
		return "[]", nil
	}

	queryText := strings.Join(queries, " ")

	if p.vectorConfigured() && !p.vectorDown.Load() {
		out, err := p.vectorDiscover(ctx, snap, queryText)
		if err == nil {
			return out, nil
		}
		logger.Warnf("Vector discovery failed, downgrading session to keyword search: %v", err)
		p.vectorDown.Store(true)
	}

	return p.lexicalDiscover(snap, queryText)
}

// Execute resolves toolID::method to its owning downstream connection
// and forwards callTool{name: method, arguments: args}, returning the
// downstream result verbatim.
func (p *SmartProxy) Execute(
	ctx context.Context, toolID, method string, args map[string]any,
) (*mcp.CallToolResult, error) {
	snap := p.currentSnapshot()

	var entry *toolEntry
	if snap != nil {
		entry = snap.entries[toolID+"::"+method]
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: no method %q on server %q; use the discover tool to find available tools",
			gateway.ErrToolNotFound, method, toolID)
	}

	caller, ok := p.resolver.Resolve(entry.tool.ConnectionID)
	if !ok {
		return nil, fmt.Errorf("downstream connection %q for %s::%s is unavailable",
			entry.tool.ConnectionID, toolID, method)
	}

	return caller.CallTool(ctx, entry.tool.OriginalName, args)
}

// currentSnapshot returns the published snapshot pointer. All reads in
// one Discover or Execute call go through the same snapshot.
func (p *SmartProxy) currentSnapshot() *snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// vectorConfigured reports whether this binding can use vector search at
// all: embeddings mode with an injected client, repository and namespace.
func (p *SmartProxy) vectorConfigured() bool {
	return p.cfg.SearchMode == SearchModeEmbeddings &&
		p.embedder != nil &&
		p.repo != nil &&
		p.namespace != uuid.Nil
}

// lexicalDiscover is the default and fallback discovery path.
func (p *SmartProxy) lexicalDiscover(snap *snapshot, queryText string) (string, error) {
	fetchSize := 2 * p.cfg.DynamicLimit.MaxResults
	hits, err := lexicalSearch(snap.index, queryText, *p.cfg.Fuzzy, *p.cfg.DescriptionBoost, fetchSize)
	if err != nil {
		// Discover never fails: an empty list is always a valid answer.
		logger.Errorf("Lexical search failed: %v", err)
		return "[]", nil
	}

	descriptors := make([]toolDescriptor, 0, len(hits))
	scores := make([]float64, 0, len(hits))
	for _, h := range hits {
		entry, ok := snap.entries[h.UniqueID]
		if !ok {
			continue
		}
		descriptors = append(descriptors, descriptorOf(entry.tool))
		scores = append(scores, h.Score)
	}

	keep := truncateAtScoreDrop(scores, p.cfg.DynamicLimit)
	return marshalDescriptors(descriptors[:keep])
}

// toolDescriptor is the client-facing shape of one discovered tool.
// Scores are carried out-of-band and never serialized, preserving the
// historical response shape across both backends.
type toolDescriptor struct {
	ToolID      string `json:"toolId"`
	Method      string `json:"method"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

func descriptorOf(t gateway.BoundTool) toolDescriptor {
	return toolDescriptor{
		ToolID:      t.ServerName,
		Method:      t.OriginalName,
		Description: t.Tool.Description,
		InputSchema: inputSchemaOf(t.Tool),
	}
}

func inputSchemaOf(t mcp.Tool) any {
	if len(t.RawInputSchema) > 0 {
		return json.RawMessage(t.RawInputSchema)
	}
	return t.InputSchema
}

func marshalDescriptors(descriptors []toolDescriptor) (string, error) {
	if len(descriptors) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(descriptors)
	if err != nil {
		return "", fmt.Errorf("failed to encode descriptors: %w", err)
	}
	return string(data), nil
}
