package rag

import (
	"strings"
	"unicode/utf8"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
)

const mergeSeparator = "\n...\n"

type pageKey struct {
	title string
	page  int
}

// compressChunks merges chunks from the same (title, page) into one context unit. Groups keep
// first-seen order, merged content keeps retrieval order and every bbox survives.
func compressChunks(chunks []ragModel.RankedResult) []ragModel.CompressedChunk {
	if len(chunks) == 0 {
		return nil
	}

	index := make(map[pageKey]int)
	var groups [][]ragModel.Chunk
	for _, c := range chunks {
		key := pageKey{title: c.Title, page: c.Page}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], c.Chunk)
	}

	compressed := make([]ragModel.CompressedChunk, 0, len(groups))
	for _, group := range groups {
		first := group[0]
		if len(group) == 1 {
			compressed = append(compressed, ragModel.CompressedChunk{
				Title:       first.Title,
				Page:        first.Page,
				Section:     first.Section,
				Content:     first.Content,
				BBoxes:      append([]ragModel.BBox{}, first.BBoxes...),
				MergedCount: 1,
			})
			continue
		}

		merged := ragModel.CompressedChunk{Title: first.Title, Page: first.Page, BBoxes: []ragModel.BBox{}, MergedCount: len(group)}
		contents := make([]string, 0, len(group))
		// never shorter than the longest member, so no single passage is cut
		limit := config.CompressedChunkMaxChars
		for _, c := range group {
			contents = append(contents, c.Content)
			limit = max(limit, utf8.RuneCountInString(c.Content))
			merged.BBoxes = append(merged.BBoxes, c.BBoxes...)
			if merged.Section == "" {
				merged.Section = c.Section
			}
		}
		merged.Content = truncateRunes(strings.Join(contents, mergeSeparator), limit)
		compressed = append(compressed, merged)
	}
	return compressed
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
