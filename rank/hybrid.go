package rank

import (
	"context"
	"fmt"
	"math"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/pipeline"
	"github.com/rushteam/venuerec/pkg/utils"
	"github.com/rushteam/venuerec/recall"
)

// Weights 两路信号的融合权重，必须非负且和为 1。
type Weights struct {
	CF      float64 `json:"cf" yaml:"cf"`
	Content float64 `json:"content" yaml:"content"`
}

// DefaultWeights 0.5 / 0.5。
func DefaultWeights() Weights {
	return Weights{CF: 0.5, Content: 0.5}
}

const weightEpsilon = 1e-9

func (w Weights) Validate() error {
	if w.CF < 0 || w.Content < 0 {
		return core.InvalidInput("blend weights must be non-negative: cf=%g content=%g", w.CF, w.Content)
	}
	if math.Abs(w.CF+w.Content-1) > weightEpsilon {
		return core.InvalidInput("blend weights must sum to 1: cf=%g content=%g", w.CF, w.Content)
	}
	return nil
}

// Normalize 按比例缩放到和为 1；两者都为 0 时回退到默认权重。
func (w Weights) Normalize() Weights {
	sum := w.CF + w.Content
	if sum <= 0 || w.CF < 0 || w.Content < 0 {
		return DefaultWeights()
	}
	return Weights{CF: w.CF / sum, Content: w.Content / sum}
}

// Blend 对两路分数做线性融合。
//
// 候选为两个 map 的 key 并集，缺失的一路按 0 计；
// 按融合分降序、itemId 升序排序后取前 topK（topK<=0 返回全部）。
func Blend(als, content core.ScoreMap, topK int, w Weights) []core.CandidateScore {
	out := make([]core.CandidateScore, 0, len(als)+len(content))
	for id, s := range als {
		out = append(out, core.CandidateScore{ItemID: id, Score: w.CF*s + w.Content*content[id]})
	}
	for id, s := range content {
		if _, ok := als[id]; ok {
			continue
		}
		out = append(out, core.CandidateScore{ItemID: id, Score: w.Content * s})
	}
	return recall.TopScores(out, topK)
}

// HybridNode 是混合打分的排序 Node。
// 读取 Item.Features 中 als / content 两路分数，写回 Item.Score，排序后截断到 TopK。
// - 写入 labels：rank_model=hybrid
type HybridNode struct {
	Weights Weights

	// TopK 固定截断数；<=0 时使用 rctx.TopK
	TopK int
}

func (n *HybridNode) Name() string        { return "rank.hybrid" }
func (n *HybridNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *HybridNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if err := n.Weights.Validate(); err != nil {
		return nil, err
	}
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		it.Score = n.Weights.CF*it.Feature(recall.FeatureALS) + n.Weights.Content*it.Feature(recall.FeatureContent)
		it.PutLabel("rank_model", utils.Label{Value: "hybrid", Source: "rank"})
		out = append(out, it)
	}
	core.SortItems(out)

	topK := n.TopK
	if topK <= 0 && rctx != nil {
		topK = rctx.TopK
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	for i, it := range out {
		it.PutLabel("hybrid_rank", utils.Label{Value: fmt.Sprint(i + 1), Source: "rank"})
	}
	return out, nil
}
