package commonModels

import "time"

type Document struct {
	Id                  string    `json:"document_id"`
	Name                string    `json:"document_name"`
	SourceURL           string    `json:"source_url,omitempty"`
	LastIngestTimestamp time.Time `json:"ingested_at"`
	ContentType         DocType   `json:"contentType"`
}

type DocChunk struct {
	Doc            Document
	ChunkId        string `json:"chunk_id"`
	Chunk          string `json:"content"`
	PageNum        int    `json:"page_num"`
	ChunkPageOrder int    `json:"chunk_order"`
	EmbeddingModel string `json:"embeddingModel"`
	// Metadata is the layout metadata stored alongside the chunk (page, headings, bbox).
	Metadata []byte `json:"chunk_metadata,omitempty"`
}

type DocType string

var PDF DocType = "PDF"
var DOCX DocType = "DOCX"
var TXT DocType = "TXT"
var ERR DocType = "ERROR"
