package pipeline

import (
	"context"

	"github.com/rushteam/venuerec/core"
)

// Kind 用于标记 Node 类型，方便观测/编排（例如按阶段打点）。
type Kind string

const (
	KindRecall Kind = "recall" // 召回阶段：ALS 与内容相似度并发产生候选
	KindFilter Kind = "filter" // 过滤阶段：剔除不符合约束的候选
	KindRank   Kind = "rank"   // 排序阶段：混合打分并排序
	KindReRank Kind = "rerank" // 重排阶段：地理解析、截断
)

// Node 是 Pipeline 的最小可扩展单元：输入候选，输出候选。
// 召回节点忽略输入；其余节点可以改分、重排、删减，也可以往 Meta 里写数据给下游。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}
