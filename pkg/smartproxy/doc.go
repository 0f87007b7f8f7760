// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package smartproxy collapses a namespace's aggregated tool catalogue
// into a two-tool surface:
//   - discover: natural-language search over the bound tools, served by
//     an in-memory lexical index or pgvector similarity search
//   - execute: invocation of any bound tool by its post-transform name
//
// The proxy owns the in-memory tool table and lexical index for one
// namespace binding and reconciles persisted embeddings against the
// catalogue when the endpoint is configured for vector search. Embedding
// and vector-store failures never fail a discover call; the lexical
// index is rebuilt unconditionally on every bind and is always ready as
// a fallback.
package smartproxy
