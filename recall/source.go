package recall

import (
	"context"

	"github.com/rushteam/venuerec/core"
)

// Source 一路召回信号，由 Fanout 并发调用。
// 返回的 Item 在 Features 里带上本路分数（FeatureALS / FeatureContent），冷启动返回空切片。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}
