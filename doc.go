// Package venuerec 是一个混合门店推荐引擎。
//
// 设计要点：
// - 两路信号：隐式 ALS 协同过滤 + 画像向量与品牌向量的余弦相似度，按权重线性融合
// - 地理约束：融合后的品牌映射到请求位置半径内最近的门店，每个品牌至多一家
// - Pipeline-first: 召回、融合、地理解析、过滤、截断都是 Node，可用 YAML 重新组装
// - 模型代原子替换：训练在旁路完成，请求永远读到完整的一代
package venuerec

import (
	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/pipeline"
	"github.com/rushteam/venuerec/recommend"
)

// 轻量 facade：便于直接 import "venuerec" 使用核心抽象。
type (
	Recommender = recommend.Recommender
	Request     = recommend.Request
	Options     = recommend.Options
	Result      = core.RecommendationResult
	Pipeline    = pipeline.Pipeline
	Node        = pipeline.Node
)

// New 等同于 recommend.New。
func New(opts Options) (*Recommender, error) {
	return recommend.New(opts)
}
