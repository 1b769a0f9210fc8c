package rag

import (
	"strings"
	"testing"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ranked(title string, page int, content string, boxes ...ragModel.BBox) ragModel.RankedResult {
	return ragModel.RankedResult{Chunk: ragModel.Chunk{Title: title, Page: page, Content: content, BBoxes: boxes}}
}

func TestCompressChunks_GroupsByTitleAndPage(t *testing.T) {
	chunks := []ragModel.RankedResult{
		ranked("Manual", 3, "first", ragModel.BBox{1, 1, 2, 2}),
		ranked("Manual", 5, "other page", ragModel.BBox{9, 9, 9, 9}),
		ranked("Manual", 3, "second", ragModel.BBox{3, 3, 4, 4}),
		ranked("Guide", 3, "different doc"),
	}
	chunks[2].Section = "Setup"

	out := compressChunks(chunks)
	require.Len(t, out, 3)

	assert.Equal(t, "Manual", out[0].Title)
	assert.Equal(t, 3, out[0].Page)
	assert.Equal(t, "first"+mergeSeparator+"second", out[0].Content)
	assert.Equal(t, 2, out[0].MergedCount)
	assert.Equal(t, []ragModel.BBox{{1, 1, 2, 2}, {3, 3, 4, 4}}, out[0].BBoxes)
	assert.Equal(t, "Setup", out[0].Section)

	assert.Equal(t, 5, out[1].Page)
	assert.Equal(t, 1, out[1].MergedCount)
	assert.Equal(t, "Guide", out[2].Title)
}

// every input bbox survives and every (title, page) appears exactly once
func TestCompressChunks_Invariant(t *testing.T) {
	var chunks []ragModel.RankedResult
	totalBoxes := 0
	for i := 0; i < 30; i++ {
		page := i % 4
		box := ragModel.BBox{float64(i), 0, float64(i) + 1, 1}
		chunks = append(chunks, ranked("Doc", page, strings.Repeat("x", 200), box))
		totalBoxes++
	}

	out := compressChunks(chunks)
	require.Len(t, out, 4)

	seen := map[int]bool{}
	gotBoxes, merged := 0, 0
	for _, c := range out {
		assert.False(t, seen[c.Page], "page %d emitted twice", c.Page)
		seen[c.Page] = true
		gotBoxes += len(c.BBoxes)
		merged += c.MergedCount
		assert.LessOrEqual(t, len([]rune(c.Content)), config.CompressedChunkMaxChars)
		assert.GreaterOrEqual(t, len([]rune(c.Content)), 200, "merged content shorter than a member")
	}
	assert.Equal(t, totalBoxes, gotBoxes)
	assert.Equal(t, len(chunks), merged)
}

func TestCompressChunks_LongMemberKeepsItsContent(t *testing.T) {
	long := strings.Repeat("z", config.CompressedChunkMaxChars+500)
	out := compressChunks([]ragModel.RankedResult{
		ranked("Doc", 1, long, ragModel.BBox{0, 0, 1, 1}),
		ranked("Doc", 1, "tail", ragModel.BBox{2, 2, 3, 3}),
	})

	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].MergedCount)
	assert.GreaterOrEqual(t, len([]rune(out[0].Content)), len([]rune(long)))
	assert.True(t, strings.HasPrefix(out[0].Content, long))
	assert.Len(t, out[0].BBoxes, 2)
}

func TestCompressChunks_SingletonNotCapped(t *testing.T) {
	long := strings.Repeat("y", config.CompressedChunkMaxChars+100)
	out := compressChunks([]ragModel.RankedResult{ranked("Doc", 1, long)})
	require.Len(t, out, 1)
	assert.Equal(t, long, out[0].Content)
}

func TestCompressChunks_Empty(t *testing.T) {
	assert.Empty(t, compressChunks(nil))
}

func TestBuildContext(t *testing.T) {
	ctx := buildContext([]ragModel.CompressedChunk{
		{Title: "Manual", Page: 3, Content: "alpha", BBoxes: []ragModel.BBox{{1, 2, 3, 4}}},
		{Title: "Manual", Page: 4, Content: "beta"},
	})
	assert.Equal(t, "[Manual|p3|bbox:[[1,2,3,4]]]\nalpha\n\n[Manual|p4|bbox:[]]\nbeta", ctx)
	assert.Equal(t, "CONTEXT:\nc\n\nQUESTION: q", buildUserMessage("c", "q"))
}
