package rerank

import (
	"context"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/pipeline"
)

// TopNNode 截取前 N 个物品，放在 Pipeline 末尾保证返回数量不超过请求的 TopK。
type TopNNode struct {
	// N 要保留的物品数量；<=0 时使用 rctx.TopK，两者都 <=0 时不截断
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if limit <= 0 && rctx != nil {
		limit = rctx.TopK
	}
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
