package filter

import (
	"context"

	"github.com/rushteam/venuerec/core"
)

// Filter 对单个候选做判定，true 表示移除。
// 在地理解析之后执行，item.Meta["store"] 已经是最近门店。
type Filter interface {
	Name() string
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}
