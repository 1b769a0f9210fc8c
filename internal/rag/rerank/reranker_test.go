package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func results(contents ...string) []ragModel.RankedResult {
	out := make([]ragModel.RankedResult, len(contents))
	for i, c := range contents {
		out[i] = ragModel.RankedResult{Chunk: ragModel.Chunk{ID: c, Content: c, Score: 0.01}}
	}
	return out
}

func TestNoOp(t *testing.T) {
	in := results("a", "b", "c")
	assert.Len(t, NoOp{}.Rerank(context.Background(), "q", in, 2), 2)
	assert.Len(t, NoOp{}.Rerank(context.Background(), "q", in, 0), 3)
	assert.Len(t, NoOp{}.Rerank(context.Background(), "q", in, 10), 3)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		settings config.Settings
		cohere   bool
	}{
		{"disabled", config.Settings{RerankerEnabled: false, RerankerProvider: "cohere", CohereAPIKey: "k"}, false},
		{"missing key", config.Settings{RerankerEnabled: true, RerankerProvider: "cohere"}, false},
		{"unknown provider", config.Settings{RerankerEnabled: true, RerankerProvider: "jina", CohereAPIKey: "k"}, false},
		{"cohere", config.Settings{RerankerEnabled: true, RerankerProvider: "cohere", CohereAPIKey: "k"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&tt.settings, nil)
			_, isCohere := r.(*Cohere)
			assert.Equal(t, tt.cohere, isCohere)
		})
	}
}

func TestCohere_ReordersByRelevance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req cohereRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rerank-english-v3.0", req.Model)
		assert.Equal(t, 2, req.TopN)
		assert.Equal(t, []string{"a", "b", "c"}, req.Documents)
		_, _ = w.Write([]byte(`{"results":[{"index":2,"relevance_score":0.97},{"index":0,"relevance_score":0.41}]}`))
	}))
	defer srv.Close()

	c := NewCohere("secret", config.CohereRerankModel, srv.URL, srv.Client())
	out := c.Rerank(context.Background(), "q", results("a", "b", "c"), 2)

	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, 0.97, out[0].Score)
	assert.Equal(t, "a", out[1].ID)
}

func TestCohere_FailureFallsBackToInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewCohere("secret", config.CohereRerankModel, srv.URL, srv.Client())
	out := c.Rerank(context.Background(), "q", results("a", "b", "c"), 2)

	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestCohere_Empty(t *testing.T) {
	c := NewCohere("secret", config.CohereRerankModel, "http://127.0.0.1:0", nil)
	assert.Empty(t, c.Rerank(context.Background(), "q", nil, 5))
}

func TestCohere_NeverReturnsMoreThanTopK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":1,"relevance_score":0.9},{"index":0,"relevance_score":0.8},{"index":2,"relevance_score":0.7}]}`))
	}))
	defer srv.Close()

	c := NewCohere("secret", config.CohereRerankModel, srv.URL, srv.Client())
	out := c.Rerank(context.Background(), "q", results("a", "b", "c"), 1)

	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
}

func TestCohere_EmptyResultsKeepRetrievalOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := NewCohere("secret", config.CohereRerankModel, srv.URL, srv.Client())
	out := c.Rerank(context.Background(), "q", results("a", "b", "c"), 2)

	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}
