package core

import "github.com/rushteam/venuerec/pkg/utils"

// Item 是推荐链路中的统一承载结构：特征、分数、元信息、标签。
// ID 为品牌 ID；Features 保存各路召回的原始分（als / content）；Score 用于排序决策。
type Item struct {
	ID       string
	Score    float64
	Features map[string]float64
	Meta     map[string]any
	Labels   map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:       id,
		Score:    0,
		Features: make(map[string]float64),
		Meta:     make(map[string]any),
		Labels:   make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Feature 读取某一路信号的分数，不存在时为 0。
func (it *Item) Feature(name string) float64 {
	if it.Features == nil {
		return 0
	}
	return it.Features[name]
}

// SetFeature 写入某一路信号的分数。
func (it *Item) SetFeature(name string, v float64) {
	if it.Features == nil {
		it.Features = make(map[string]float64)
	}
	it.Features[name] = v
}
