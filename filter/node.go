package filter

import (
	"context"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/pipeline"
)

// FilterNode 是过滤 Node，可以组合多个过滤器进行过滤。
// 如果任何一个过滤器返回 true，该物品就会被过滤掉；过滤器出错时保留该物品。
type FilterNode struct {
	Filters []Filter

	// OnError 过滤器出错时回调（可选，用于日志）
	OnError func(filter string, item *core.Item, err error)
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if !n.drop(ctx, rctx, item) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (n *FilterNode) drop(ctx context.Context, rctx *core.RecommendContext, item *core.Item) bool {
	for _, f := range n.Filters {
		ok, err := f.ShouldFilter(ctx, rctx, item)
		if err != nil {
			if n.OnError != nil {
				n.OnError(f.Name(), item, err)
			}
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
