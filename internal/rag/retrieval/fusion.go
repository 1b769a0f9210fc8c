package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
)

const DefaultRRFK = 60

// dedupeKey identifies a chunk across both lists. Chunks without an id fall back to a hash of
// their content.
func dedupeKey(c ragModel.Chunk) string {
	if c.ID != "" {
		return "id:" + c.ID
	}
	sum := sha256.Sum256([]byte(c.Content))
	return "content:" + hex.EncodeToString(sum[:])[:16]
}

// FuseRRF merges the vector and lexical rankings with Reciprocal Rank Fusion. Each list adds
// 1/(k+rank) for 1-based ranks; equal scores keep first-appearance order, vector list first.
// The fused score replaces Chunk.Score.
func FuseRRF(vector, lexical []ragModel.Chunk, k int) []ragModel.RankedResult {
	if k <= 0 {
		k = DefaultRRFK
	}

	byKey := make(map[string]int, len(vector)+len(lexical))
	var fused []ragModel.RankedResult

	vote := func(c ragModel.Chunk, rank int, fromVector bool) {
		key := dedupeKey(c)
		idx, seen := byKey[key]
		if !seen {
			idx = len(fused)
			byKey[key] = idx
			fused = append(fused, ragModel.RankedResult{Chunk: c})
		}
		r := &fused[idx]
		if fromVector {
			if r.VectorRank != 0 {
				return
			}
			r.VectorRank = rank
			r.VectorScore = c.Score
		} else {
			if r.BM25Rank != 0 {
				return
			}
			r.BM25Rank = rank
			r.BM25Score = c.Score
			if len(r.BBoxes) == 0 && len(c.BBoxes) > 0 {
				r.BBoxes = c.BBoxes
			}
		}
		r.RRFScore += 1.0 / float64(k+rank)
	}

	for i, c := range vector {
		vote(c, i+1, true)
	}
	for i, c := range lexical {
		vote(c, i+1, false)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].RRFScore > fused[j].RRFScore
	})
	for i := range fused {
		fused[i].Score = fused[i].RRFScore
	}
	return fused
}

// rankVectorOnly wraps a plain vector list without fusion, keeping cosine scores.
func rankVectorOnly(vector []ragModel.Chunk, minScore float64) []ragModel.RankedResult {
	out := make([]ragModel.RankedResult, 0, len(vector))
	for i, c := range vector {
		if c.Score < minScore {
			continue
		}
		out = append(out, ragModel.RankedResult{Chunk: c, VectorRank: i + 1, VectorScore: c.Score})
	}
	return out
}
