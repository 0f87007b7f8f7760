// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package embeddings_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolgate/pkg/embeddings"
	"github.com/stacklok/toolgate/pkg/gateway"
)

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  map[string]int  `json:"usage"`
}

func newEmbeddingServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateEmbeddings(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := newEmbeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/embeddings", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		// Return the data out of order: the client must sort by index.
		resp := embeddingResponse{
			Object: "list",
			Data: []embeddingData{
				{Object: "embedding", Embedding: []float32{0.4, 0.5, 0.6}, Index: 1},
				{Object: "embedding", Embedding: []float32{0.1, 0.2, 0.3}, Index: 0},
			},
			Model: "BAAI/bge-m3",
			Usage: map[string]int{"prompt_tokens": 4, "total_tokens": 4},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	client := embeddings.NewClient(srv.URL, "test-key", "BAAI/bge-m3")

	vectors, err := client.GenerateEmbeddings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors[0])
	assert.Equal(t, []float32{0.4, 0.5, 0.6}, vectors[1])
}

func TestGenerateEmbeddings_EmptyInput(t *testing.T) {
	t.Parallel()

	srv := newEmbeddingServer(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected for empty input")
	})

	client := embeddings.NewClient(srv.URL, "test-key", "")
	vectors, err := client.GenerateEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestGenerateEmbeddings_BatchTooLarge(t *testing.T) {
	t.Parallel()

	srv := newEmbeddingServer(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected for oversized batch")
	})

	client := embeddings.NewClient(srv.URL, "test-key", "")

	texts := make([]string, embeddings.MaxBatchSize+1)
	for i := range texts {
		texts[i] = "text"
	}

	_, err := client.GenerateEmbeddings(context.Background(), texts)
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrBatchTooLarge)
}

func TestGenerateEmbeddings_APIError(t *testing.T) {
	t.Parallel()

	srv := newEmbeddingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "model overloaded", "type": "server_error"}}`))
	})

	client := embeddings.NewClient(srv.URL, "test-key", "")

	_, err := client.GenerateEmbeddings(context.Background(), []string{"text"})
	require.Error(t, err)

	var apiErr *gateway.EmbeddingAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Contains(t, apiErr.Body, "model overloaded")
}

func TestGenerateSingleEmbedding(t *testing.T) {
	t.Parallel()

	srv := newEmbeddingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		resp := embeddingResponse{
			Object: "list",
			Data:   []embeddingData{{Object: "embedding", Embedding: []float32{1, 0}, Index: 0}},
			Model:  "BAAI/bge-m3",
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	client := embeddings.NewClient(srv.URL, "test-key", "")
	vector, err := client.GenerateSingleEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vector)
}

func TestModelDimensions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1024, embeddings.NewClient("", "k", "").ModelDimensions())
	assert.Equal(t, 1024, embeddings.NewClient("", "k", "BAAI/bge-m3").ModelDimensions())
	assert.Equal(t, 1536, embeddings.NewClient("", "k", "text-embedding-3-small").ModelDimensions())
	assert.Equal(t, 1024, embeddings.NewClient("", "k", "some-unknown-model").ModelDimensions())
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, embeddings.CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	assert.InDelta(t, 0.0, embeddings.CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, embeddings.CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Zero(t, embeddings.CosineSimilarity([]float32{1, 2}, []float32{1}))
	assert.Zero(t, embeddings.CosineSimilarity(nil, nil))
	assert.Zero(t, embeddings.CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
