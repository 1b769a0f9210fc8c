package retrieval

import (
	"testing"

	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(id string) ragModel.Chunk {
	return ragModel.Chunk{ID: id, Content: "content " + id, Title: "Doc"}
}

func ids(results []ragModel.RankedResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestFuseRRF_Order(t *testing.T) {
	vector := []ragModel.Chunk{chunk("A"), chunk("B"), chunk("C")}
	lexical := []ragModel.Chunk{chunk("C"), chunk("A"), chunk("D")}

	fused := FuseRRF(vector, lexical, 60)

	require.Equal(t, []string{"C", "A", "B", "D"}, ids(fused))
	assert.InDelta(t, 1.0/63+1.0/61, fused[0].RRFScore, 1e-12)
	assert.InDelta(t, 1.0/61+1.0/62, fused[1].RRFScore, 1e-12)
	assert.InDelta(t, 1.0/62, fused[2].RRFScore, 1e-12)
	assert.InDelta(t, 1.0/63, fused[3].RRFScore, 1e-12)

	assert.Equal(t, 3, fused[0].VectorRank)
	assert.Equal(t, 1, fused[0].BM25Rank)
	assert.Equal(t, 0, fused[2].BM25Rank)
	assert.Equal(t, 0, fused[3].VectorRank)
	assert.Equal(t, fused[0].RRFScore, fused[0].Score)
}

func TestFuseRRF_TiesKeepFirstAppearance(t *testing.T) {
	// X and Y both only rank first in one list, so their scores are equal
	fused := FuseRRF([]ragModel.Chunk{chunk("X")}, []ragModel.Chunk{chunk("Y")}, 60)
	assert.Equal(t, []string{"X", "Y"}, ids(fused))
}

func TestFuseRRF_DedupesByContentWhenIDMissing(t *testing.T) {
	a := ragModel.Chunk{Content: "same text", Score: 0.8}
	b := ragModel.Chunk{Content: "same text", Score: 2.5, BBoxes: []ragModel.BBox{{1, 2, 3, 4}}}
	other := ragModel.Chunk{Content: "other text"}

	fused := FuseRRF([]ragModel.Chunk{a, other}, []ragModel.Chunk{b}, 60)

	require.Len(t, fused, 2)
	assert.Equal(t, "same text", fused[0].Content)
	assert.Equal(t, 1, fused[0].VectorRank)
	assert.Equal(t, 1, fused[0].BM25Rank)
	assert.Equal(t, 0.8, fused[0].VectorScore)
	assert.Equal(t, 2.5, fused[0].BM25Score)
	assert.Len(t, fused[0].BBoxes, 1)
}

func TestFuseRRF_Empty(t *testing.T) {
	assert.Empty(t, FuseRRF(nil, nil, 60))
}
