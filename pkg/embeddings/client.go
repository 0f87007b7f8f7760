// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package embeddings is a thin adapter to an OpenAI-compatible
// /embeddings endpoint.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/stacklok/toolgate/pkg/gateway"
)

// MaxBatchSize is the per-request ceiling enforced by the client.
// Callers chunk above this.
const MaxBatchSize = 100

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "BAAI/bge-m3"

// defaultDimensions is used for models not in the static table.
const defaultDimensions = 1024

// modelDimensions is a static lookup of known embedding models. Used only
// for sanity-checking; the authoritative dimension is always the length
// of the vector actually returned.
var modelDimensions = map[string]int{
	"BAAI/bge-m3":            1024,
	"BAAI/bge-large-en-v1.5": 1024,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"all-minilm":             384,
}

// Client calls an OpenAI-compatible embedding service.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient creates a client for the given endpoint. apiURL is the base
// URL of the service (the /embeddings path is appended by the SDK); an
// empty model selects DefaultModel.
func NewClient(apiURL, apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}

	cfg := openai.DefaultConfig(apiKey)
	if apiURL != "" {
		cfg.BaseURL = apiURL
	}

	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

// GenerateEmbeddings embeds a batch of texts. Empty input returns empty
// output without a request. The response data is sorted by its index
// field before extraction; the server is not required to preserve order.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d texts exceeds limit of %d", gateway.ErrBatchTooLarge, len(texts), MaxBatchSize)
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d texts", len(resp.Data), len(texts))
	}

	data := make([]openai.Embedding, len(resp.Data))
	copy(data, resp.Data)
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// GenerateSingleEmbedding embeds one text.
func (c *Client) GenerateSingleEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// ModelDimensions returns the static dimension for the configured model,
// defaulting to 1024 for unknown models.
func (c *Client) ModelDimensions() int {
	if d, ok := modelDimensions[c.model]; ok {
		return d
	}
	return defaultDimensions
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// wrapAPIError maps SDK errors to the domain error type, preserving the
// HTTP status and body where available.
func wrapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &gateway.EmbeddingAPIError{Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &gateway.EmbeddingAPIError{Status: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}

	return &gateway.EmbeddingAPIError{Status: 0, Body: err.Error()}
}

// CosineSimilarity computes the cosine similarity of two vectors. It is
// exposed for in-process fallback and is not used on the hot path when
// the vector store is available. Mismatched or zero-length vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
