package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/metrics"
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Cohere struct {
	apiKey   string
	model    string
	endpoint string
	client   Doer
}

func NewCohere(apiKey, model, endpoint string, client Doer) *Cohere {
	if client == nil {
		client = http.DefaultClient
	}
	return &Cohere{apiKey: apiKey, model: model, endpoint: endpoint, client: client}
}

type cohereRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type cohereResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank orders chunks by Cohere relevance and stores that score on Chunk.Score.
func (c *Cohere) Rerank(ctx context.Context, query string, chunks []ragModel.RankedResult, topK int) []ragModel.RankedResult {
	if len(chunks) == 0 {
		return nil
	}
	topN := len(chunks)
	if topK > 0 && topK < topN {
		topN = topK
	}
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	start := time.Now()
	ranked, err := c.call(ctx, query, chunks, topN)
	metrics.CaptureExecutionMetrics("rerank", time.Since(start))
	if err != nil {
		log.Error("Cohere rerank failed, keeping retrieval order", "error", err)
		return head(chunks, topK)
	}
	if len(ranked) == 0 {
		log.Warn("Cohere returned no results, keeping retrieval order", "in", len(chunks))
		return head(chunks, topK)
	}
	// the provider may send more than top_n back
	ranked = head(ranked, topN)
	log.Info("Reranked chunks", "in", len(chunks), "out", len(ranked), "topScore", ranked[0].Score)
	return ranked
}

func (c *Cohere) call(ctx context.Context, query string, chunks []ragModel.RankedResult, topN int) ([]ragModel.RankedResult, error) {
	docs := make([]string, len(chunks))
	for i, ch := range chunks {
		docs[i] = ch.Content
	}
	body, err := json.Marshal(cohereRequest{Model: c.model, Query: query, Documents: docs, TopN: topN})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("cohere status %d: %s", resp.StatusCode, msg)
	}

	var out cohereResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode cohere response: %w", err)
	}

	ranked := make([]ragModel.RankedResult, 0, len(out.Results))
	for _, r := range out.Results {
		if r.Index < 0 || r.Index >= len(chunks) {
			return nil, fmt.Errorf("cohere returned index %d for %d documents", r.Index, len(chunks))
		}
		item := chunks[r.Index]
		item.Score = r.RelevanceScore
		ranked = append(ranked, item)
	}
	return ranked, nil
}
