// Package mcpServer exposes document question answering as an MCP tool over streamable HTTP.
package mcpServer

import (
	"context"
	"errors"
	"net/http"

	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/rag"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	Name    = "docrag"
	Version = "1.0.0"
)

var ErrMissingService = errors.New("rag service is required")

type QueryDocumentInput struct {
	Query        string   `json:"query" jsonschema:"the question to answer from the document"`
	DocumentID   string   `json:"document_id" jsonschema:"id of the indexed document to search"`
	DocumentName string   `json:"document_name,omitempty" jsonschema:"display name of the document"`
	TopK         int      `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default 15)"`
	MinScore     *float64 `json:"min_score,omitempty" jsonschema:"minimum retrieval score"`
}

type QueryDocumentOutput struct {
	Response   string             `json:"response"`
	Sources    []ragModel.Source  `json:"sources"`
	Similarity *float64           `json:"similarity,omitempty"`
	Cached     ragModel.CacheTier `json:"cached,omitempty"`
	TotalMs    float64            `json:"total_ms"`
}

type Server struct {
	service rag.Service
	server  *mcp.Server
	logger  *logger_i.Logger
}

func NewServer(service rag.Service) (*Server, error) {
	if service == nil {
		return nil, ErrMissingService
	}
	s := &Server{
		service: service,
		server:  mcp.NewServer(&mcp.Implementation{Name: Name, Version: Version}, nil),
		logger:  logger_i.NewLogger("MCP Server"),
	}
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_document",
		Description: "Answer a question from one indexed document, citing page, section and bounding boxes",
	}, s.handleQueryDocument)
	return s, nil
}

// Handler serves the MCP streamable HTTP transport; mount it behind the API key middleware.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) handleQueryDocument(ctx context.Context, _ *mcp.CallToolRequest, input QueryDocumentInput) (*mcp.CallToolResult, QueryDocumentOutput, error) {
	answer, timing, err := s.service.GenerateAnswer(ctx, rag.QueryRequest{
		Query:        input.Query,
		DocumentID:   input.DocumentID,
		DocumentName: input.DocumentName,
		TopK:         input.TopK,
		MinScore:     input.MinScore,
	})
	if err != nil {
		s.logger.Warn("query_document failed", "documentId", input.DocumentID, "error", err)
		return nil, QueryDocumentOutput{}, err
	}
	sources := answer.Sources
	if sources == nil {
		sources = []ragModel.Source{}
	}
	return nil, QueryDocumentOutput{
		Response:   answer.Response,
		Sources:    sources,
		Similarity: answer.Similarity,
		Cached:     answer.Cached,
		TotalMs:    timing.TotalMs,
	}, nil
}
