package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/akolanti/GoDocRAG/internal/middleware"
	"github.com/stretchr/testify/assert"
)

func TestRoutes(t *testing.T) {
	middleware.InitAuth("route-key")
	mcpCalled := false
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mcpCalled = true
		w.WriteHeader(http.StatusOK)
	})
	h := Routes(mcpHandler)

	tests := []struct {
		name     string
		method   string
		path     string
		apiKey   string
		wantCode int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"query needs a key", http.MethodPost, "/query", "", http.StatusUnauthorized},
		{"invalidate needs a key", http.MethodPost, "/documents/doc-1/invalidate", "", http.StatusUnauthorized},
		{"reindex needs a key", http.MethodPost, "/documents/doc-1/reindex", "wrong", http.StatusUnauthorized},
		{"mcp needs a key", http.MethodPost, "/mcp", "", http.StatusUnauthorized},
		{"swagger redirects", http.MethodGet, "/swagger", "", http.StatusMovedPermanently},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.RemoteAddr = fmt.Sprintf("10.9.0.%d:5000", i+1)
			if tt.apiKey != "" {
				req.Header.Set("X-API-KEY", tt.apiKey)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}

	t.Run("mcp with a key reaches the handler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		req.RemoteAddr = "10.9.1.1:5000"
		req.Header.Set("X-API-KEY", "route-key")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, mcpCalled)
	})
}
