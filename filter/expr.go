package filter

import (
	"context"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/pkg/dsl"
)

// ExprFilter 用 CEL 表达式过滤，表达式为 true 的候选被移除。
//
// 例：`item.features.content < 0.1 && !has(item.features.als)` 去掉只有微弱内容相似度的候选。
type ExprFilter struct {
	prg *dsl.Program
}

func NewExprFilter(expr string) (*ExprFilter, error) {
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{prg: prg}, nil
}

func (f *ExprFilter) Name() string { return "filter.expr" }

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	return f.prg.Eval(item, rctx)
}
