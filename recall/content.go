package recall

import (
	"context"

	"github.com/rushteam/venuerec/core"
)

// FeatureContent 是内容相似度在 Item.Features 中的 key。
const FeatureContent = "content"

// ContentRecall 是基于内容向量的召回源：用户画像向量与品牌向量的余弦相似度。
//
// 只依赖 core.VectorService；默认实现是每次请求全量扫描的 vector.ScanService。
// 画像向量为空时不产生候选。
type ContentRecall struct {
	Vectors    core.VectorService
	Collection string

	// TopK 固定候选数；<=0 时取 rctx.TopK × CandidateMultiplier
	TopK                int
	CandidateMultiplier int
}

func (r *ContentRecall) Name() string {
	return "recall.content"
}

// Score 返回与 vec 最相似的 topK 个物品。向量服务失败时返回 UNAVAILABLE。
func (r *ContentRecall) Score(ctx context.Context, vec []float64, topK int) (core.ScoreMap, error) {
	scores, err := r.search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	out := make(core.ScoreMap, len(scores))
	for _, s := range scores {
		out[s.ItemID] = s.Score
	}
	return out, nil
}

func (r *ContentRecall) search(ctx context.Context, vec []float64, topK int) ([]core.CandidateScore, error) {
	if r.Vectors == nil || len(vec) == 0 {
		return nil, nil
	}
	res, err := r.Vectors.Search(ctx, &core.VectorSearchRequest{
		Collection: r.Collection,
		Vector:     vec,
		TopK:       topK,
		Metric:     string(core.MetricCosine),
	})
	if err != nil {
		if core.IsDomainError(err) {
			return nil, err
		}
		return nil, core.Unavailable(core.ModuleVector, err)
	}
	out := make([]core.CandidateScore, 0, len(res.Items))
	for _, it := range res.Items {
		out = append(out, core.CandidateScore{ItemID: it.ID, Score: it.Score})
	}
	return TopScores(out, topK), nil
}

func (r *ContentRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if rctx == nil {
		return nil, nil
	}
	scores, err := r.search(ctx, rctx.ProfileVector, candidateCount(r.TopK, r.CandidateMultiplier, rctx))
	if err != nil {
		return nil, err
	}
	return toItems(scores, FeatureContent), nil
}
