package recall

import (
	"github.com/rushteam/venuerec/core"
)

// TopScores 取分数最高的 k 个，分数相同时 ID 升序。k<=0 返回全部。
func TopScores(scores []core.CandidateScore, k int) []core.CandidateScore {
	core.SortCandidates(scores)
	if k > 0 && len(scores) > k {
		scores = scores[:k]
	}
	return scores
}

// candidateCount 单路召回的候选数 = 最终 TopK × 倍数。
func candidateCount(fixed, multiplier int, rctx *core.RecommendContext) int {
	if fixed > 0 {
		return fixed
	}
	if multiplier <= 0 {
		multiplier = core.DefaultCandidateMultiplier
	}
	topK := core.DefaultTopK
	if rctx != nil && rctx.TopK > 0 {
		topK = rctx.TopK
	}
	return topK * multiplier
}

func toItems(scores []core.CandidateScore, feature string) []*core.Item {
	out := make([]*core.Item, 0, len(scores))
	for _, s := range scores {
		it := core.NewItem(s.ItemID)
		it.Score = s.Score
		it.SetFeature(feature, s.Score)
		out = append(out, it)
	}
	return out
}
