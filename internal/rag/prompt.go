package rag

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
)

const systemPrompt = `You are an expert document assistant. You MUST respond with valid JSON only.

RULES:
• Use ONLY the provided context
• Every fact MUST have an inline citation: (Document_Title, p. X)
• Include bbox coordinates from context in your sources
• If multiple chunks from same page, include ALL their bboxes

RESPOND WITH THIS EXACT JSON STRUCTURE (no other text):
{"response": "markdown answer with citations", "sources": [{"name": "doc title", "page": 1, "section": "section or null", "exactText": "verbatim quote", "bboxes": [[x0,y0,x1,y1]], "relevance": "high"}]}`

// formatContextBlock renders one unit as "[title|p{page}|bbox:{bboxes}]\n{content}".
func formatContextBlock(c ragModel.CompressedChunk) string {
	boxes := c.BBoxes
	if boxes == nil {
		boxes = []ragModel.BBox{}
	}
	encoded, err := json.Marshal(boxes)
	if err != nil {
		encoded = []byte("[]")
	}
	return fmt.Sprintf("[%s|p%d|bbox:%s]\n%s", c.Title, c.Page, encoded, c.Content)
}

func buildContext(chunks []ragModel.CompressedChunk) string {
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		blocks[i] = formatContextBlock(c)
	}
	return strings.Join(blocks, "\n\n")
}

func buildUserMessage(contextText, query string) string {
	return "CONTEXT:\n" + contextText + "\n\nQUESTION: " + query
}
