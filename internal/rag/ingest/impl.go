package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/akolanti/GoDocRAG/internal/adapter/utils"
	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/customHttpClient"
	"github.com/akolanti/GoDocRAG/internal/domain/commonModels"
	"github.com/akolanti/GoDocRAG/internal/rag/embedding"
)

//splitter

func splitTextIntoChunks(text string, limit int, overlap int) []string {
	var chunks []string

	if len(text) <= limit {
		return []string{text}
	}

	// Separators ordered from "best" to "worst" for semantic meaning
	separators := []string{"\n\n", "\n", ". ", " ", ""}

	var splitChar string
	for _, s := range separators {
		if strings.Contains(text, s) {
			splitChar = s
			break
		}
	}

	parts := strings.Split(text, splitChar)
	var currentChunk strings.Builder

	for _, part := range parts {
		if currentChunk.Len()+len(part)+len(splitChar) > limit {
			if currentChunk.Len() > 0 {
				chunks = append(chunks, currentChunk.String())
			}

			// start the next chunk with the tail of the previous one
			overlapContent := ""
			if currentChunk.Len() > overlap {
				overlapContent = currentChunk.String()[currentChunk.Len()-overlap:]
			}

			currentChunk.Reset()
			currentChunk.WriteString(overlapContent)
		}

		if currentChunk.Len() > 0 && splitChar != "" {
			currentChunk.WriteString(splitChar)
		}
		currentChunk.WriteString(part)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, currentChunk.String())
	}

	return chunks
}

func getDocType(docPath string) commonModels.DocType {
	ext := strings.ToLower(filepath.Ext(docPath))
	switch ext {
	case ".pdf":
		return commonModels.PDF
	case ".docx", ".rtf", ".odt":
		return commonModels.DOCX
	case ".txt", ".md":
		return commonModels.TXT
	default:
		return commonModels.ERR
	}
}

// chunkMetadata mirrors the layout metadata the query side reads back (title, dl_meta.page_no
// and headings), so reindexed chunks and parser-produced chunks look the same.
func chunkMetadata(page int, docName string) []byte {
	meta := map[string]any{"page_no": page}
	root := map[string]any{"dl_meta": meta}
	if docName != "" {
		meta["headings"] = []string{docName}
		root["title"] = docName
	}
	b, err := json.Marshal(root)
	if err != nil {
		return nil
	}
	return b
}

func PrepareChunks(pages []rawPage, doc commonModels.Document, embeddingModel string) []commonModels.DocChunk {
	var allChunks []commonModels.DocChunk

	for _, page := range pages {
		if strings.TrimSpace(page.Content) == "" {
			continue
		}
		stringChunks := splitTextIntoChunks(page.Content, config.ChunkSize, config.ChunkOverlap)
		meta := chunkMetadata(page.Number, doc.Name)

		for _, text := range stringChunks {
			if strings.TrimSpace(text) == "" {
				continue
			}
			allChunks = append(allChunks, commonModels.DocChunk{
				Doc:            doc,
				ChunkId:        utils.GetNewUUID(),
				Chunk:          text,
				PageNum:        page.Number,
				ChunkPageOrder: len(allChunks),
				EmbeddingModel: embeddingModel,
				Metadata:       meta,
			})
		}
	}

	return allChunks
}

// EmbedChunks embeds every chunk in provider-sized batches. The result is index-aligned with
// chunks.
func EmbedChunks(ctx context.Context, chunks []commonModels.DocChunk, embedder embedding.Embedder) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Chunk
	}

	vectors := make([][]float32, 0, len(chunks))
	for _, batch := range embedding.Batches(texts, config.EmbeddingBatchSize) {
		logger.Debug("Starting embedding call", "batchSize", len(batch))
		out, err := embedder.BatchEmbedding(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embedding batch failed: %w", err)
		}
		if len(out) != len(batch) {
			return nil, fmt.Errorf("embedding batch returned %d vectors for %d chunks", len(out), len(batch))
		}
		vectors = append(vectors, out...)
	}
	return vectors, nil
}

// downloadSource copies a remote document to a temp file that keeps the URL's extension.
func downloadSource(ctx context.Context, sourceURL string) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid source url %q", sourceURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := customHttpClient.GetPooledClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch source: status %d", resp.StatusCode)
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" && strings.Contains(resp.Header.Get("Content-Type"), "pdf") {
		ext = ".pdf"
	}
	f, err := os.CreateTemp("", "reindex-*"+ext)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write source: %w", err)
	}
	return f.Name(), nil
}
