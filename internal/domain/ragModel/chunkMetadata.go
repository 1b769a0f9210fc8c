package ragModel

import (
	"encoding/json"
)

const UnknownTitle = "Unknown"

// ChunkMetadata is the typed view of the parser metadata stored next to each chunk.
// Documents without layout data simply leave the optional fields empty.
type ChunkMetadata struct {
	Title    string
	Page     int
	Headings []string
	BBox     *BBox
}

type layoutMeta struct {
	Title  string  `json:"title"`
	Page   float64 `json:"page"`
	DLMeta struct {
		PageNo   float64  `json:"page_no"`
		Headings []string `json:"headings"`
		DocItems []struct {
			Prov []struct {
				PageNo float64         `json:"page_no"`
				BBox   json.RawMessage `json:"bbox"`
			} `json:"prov"`
		} `json:"doc_items"`
	} `json:"dl_meta"`
}

type edgeBox struct {
	L *float64 `json:"l"`
	T *float64 `json:"t"`
	R *float64 `json:"r"`
	B *float64 `json:"b"`
}

// ParseChunkMetadata never fails: unreadable metadata yields the zero value.
func ParseChunkMetadata(raw []byte) ChunkMetadata {
	var meta ChunkMetadata
	if len(raw) == 0 {
		return meta
	}
	var lm layoutMeta
	if err := json.Unmarshal(raw, &lm); err != nil {
		return meta
	}
	meta.Title = lm.Title
	meta.Page = int(lm.DLMeta.PageNo)
	if meta.Page <= 0 {
		meta.Page = int(lm.Page)
	}
	meta.Headings = lm.DLMeta.Headings
	if len(lm.DLMeta.DocItems) > 0 && len(lm.DLMeta.DocItems[0].Prov) > 0 {
		if box, ok := ParseBBox(lm.DLMeta.DocItems[0].Prov[0].BBox); ok {
			meta.BBox = &box
		}
	}
	return meta
}

// ParseBBox accepts either {"l","t","r","b"} or [x0,y0,x1,y1].
func ParseBBox(raw json.RawMessage) (BBox, bool) {
	if len(raw) == 0 {
		return BBox{}, false
	}
	var list []float64
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) != 4 {
			return BBox{}, false
		}
		return BBox{list[0], list[1], list[2], list[3]}, true
	}
	var edges edgeBox
	if err := json.Unmarshal(raw, &edges); err != nil {
		return BBox{}, false
	}
	if edges.L == nil || edges.T == nil || edges.R == nil || edges.B == nil {
		return BBox{}, false
	}
	return BBox{*edges.L, *edges.T, *edges.R, *edges.B}, true
}

// Section is the innermost heading, or empty.
func (m ChunkMetadata) Section() string {
	if len(m.Headings) == 0 {
		return ""
	}
	return m.Headings[len(m.Headings)-1]
}

// PageOr prefers the layout page number and falls back to the stored column.
func (m ChunkMetadata) PageOr(fallback int) int {
	if m.Page > 0 {
		return m.Page
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

func (m ChunkMetadata) BBoxes() []BBox {
	if m.BBox == nil {
		return nil
	}
	return []BBox{*m.BBox}
}

// TitleOr prefers the title stored with the chunk, then the document name, then UnknownTitle.
func (m ChunkMetadata) TitleOr(documentName string) string {
	switch {
	case m.Title != "":
		return m.Title
	case documentName != "":
		return documentName
	default:
		return UnknownTitle
	}
}

// NewChunk builds a Chunk from a stored row and its raw metadata.
func NewChunk(id, content string, score float64, pageNumber int, rawMeta []byte, documentName string) Chunk {
	meta := ParseChunkMetadata(rawMeta)
	return Chunk{
		ID:      id,
		Content: content,
		Score:   score,
		Page:    meta.PageOr(pageNumber),
		Section: meta.Section(),
		BBoxes:  meta.BBoxes(),
		Title:   meta.TitleOr(documentName),
	}
}
