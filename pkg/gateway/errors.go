// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"fmt"
)

// Common domain errors used across the smart proxy subpackages.
// These errors should be checked using errors.Is().
var (
	// ErrToolNotFound indicates an execute call named a (toolId, method)
	// tuple that is not part of the current binding.
	ErrToolNotFound = errors.New("tool not found")

	// ErrBatchTooLarge indicates a caller handed the embedding client
	// more texts than one request allows. This is a programming error in
	// the caller and fails fast.
	ErrBatchTooLarge = errors.New("embedding batch too large")

	// ErrInvalidConfig indicates invalid configuration was provided.
	// Wrapping errors should provide specific details about what is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// EmbeddingAPIError indicates a non-2xx or network failure from the
// embedding service. Within discover it triggers the lexical fallback;
// within reconciliation it downgrades the session to keyword search.
type EmbeddingAPIError struct {
	// Status is the HTTP status code, or 0 for transport failures.
	Status int

	// Body is the response body or underlying error text.
	Body string
}

func (e *EmbeddingAPIError) Error() string {
	return fmt.Sprintf("embedding API error (status %d): %s", e.Status, e.Body)
}
