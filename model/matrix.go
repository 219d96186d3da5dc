package model

import (
	"context"
	"fmt"
	"sort"

	"github.com/rushteam/venuerec/core"
)

// IDIndex 外部 ID 与稠密编码的双向映射，编码按首次出现顺序分配。
// 编码只在产生它的那一次聚合（即同一个模型代）内有效。
type IDIndex struct {
	ids   []string
	codes map[string]int
}

func NewIDIndex() *IDIndex {
	return &IDIndex{codes: make(map[string]int)}
}

// Add 返回 id 的编码，不存在时分配下一个编码。
func (x *IDIndex) Add(id string) int {
	if c, ok := x.codes[id]; ok {
		return c
	}
	c := len(x.ids)
	x.codes[id] = c
	x.ids = append(x.ids, id)
	return c
}

// Code 查找 id 的编码。
func (x *IDIndex) Code(id string) (int, bool) {
	if x == nil {
		return 0, false
	}
	c, ok := x.codes[id]
	return c, ok
}

// ID 返回编码对应的外部 ID。
func (x *IDIndex) ID(code int) string {
	return x.ids[code]
}

func (x *IDIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.ids)
}

// IDs 返回按编码排列的 ID 副本。
func (x *IDIndex) IDs() []string {
	out := make([]string, len(x.ids))
	copy(out, x.ids)
	return out
}

// Entry 稀疏矩阵中的一个非零元素。
type Entry struct {
	User  int
	Item  int
	Count float64
}

// InteractionMatrix 用户×物品的稀疏计数矩阵，Entries 按 (User, Item) 升序。
type InteractionMatrix struct {
	Rows    int
	Cols    int
	Entries []Entry
}

// Empty 没有任何交互时不能训练。
func (m *InteractionMatrix) Empty() bool {
	return m == nil || len(m.Entries) == 0
}

// AggregateOptions 聚合参数。
type AggregateOptions struct {
	// KindWeights 按事件类型缩放计数；未配置的类型权重为 1
	KindWeights map[core.EventKind]float64
}

func (o AggregateOptions) weight(k core.EventKind) float64 {
	if w, ok := o.KindWeights[k]; ok {
		return w
	}
	return 1
}

// Aggregation 一次聚合的三个产物，必须一起使用。
type Aggregation struct {
	Matrix *InteractionMatrix
	Users  *IDIndex
	Items  *IDIndex

	// Dropped 因门店无法解析为品牌而丢弃的事件数
	Dropped int
}

// Aggregate 将交互事件聚合为稀疏计数矩阵。
//
// 第一遍：门店级事件批量解析为品牌（解析不到的丢弃），按首次出现顺序分配用户、物品编码。
// 第二遍：累加 (user, item) 计数，重复事件计数叠加，不做二值化。
// 空输入返回空矩阵，不是错误。
func Aggregate(ctx context.Context, events []core.InteractionEvent, resolver core.BrandResolver, opts AggregateOptions) (*Aggregation, error) {
	brands, err := resolveStores(ctx, events, resolver)
	if err != nil {
		return nil, err
	}

	users := NewIDIndex()
	items := NewIDIndex()
	type coded struct {
		u, i int
		w    float64
	}
	resolved := make([]coded, 0, len(events))
	dropped := 0

	// 第一遍：编码
	for _, ev := range events {
		if ev.UserID == "" {
			dropped++
			continue
		}
		itemID := ev.ItemID
		if itemID == "" {
			b, ok := brands[ev.StoreID]
			if !ok {
				dropped++
				continue
			}
			itemID = b
		}
		w := opts.weight(ev.Kind)
		if w <= 0 {
			continue
		}
		resolved = append(resolved, coded{u: users.Add(ev.UserID), i: items.Add(itemID), w: w})
	}

	// 第二遍：累加
	counts := make(map[[2]int]float64, len(resolved))
	for _, c := range resolved {
		counts[[2]int{c.u, c.i}] += c.w
	}
	entries := make([]Entry, 0, len(counts))
	for k, v := range counts {
		entries = append(entries, Entry{User: k[0], Item: k[1], Count: v})
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].User != entries[b].User {
			return entries[a].User < entries[b].User
		}
		return entries[a].Item < entries[b].Item
	})

	return &Aggregation{
		Matrix:  &InteractionMatrix{Rows: users.Len(), Cols: items.Len(), Entries: entries},
		Users:   users,
		Items:   items,
		Dropped: dropped,
	}, nil
}

func resolveStores(ctx context.Context, events []core.InteractionEvent, resolver core.BrandResolver) (map[string]string, error) {
	seen := make(map[string]struct{})
	var storeIDs []string
	for _, ev := range events {
		if ev.ItemID != "" || ev.StoreID == "" {
			continue
		}
		if _, ok := seen[ev.StoreID]; ok {
			continue
		}
		seen[ev.StoreID] = struct{}{}
		storeIDs = append(storeIDs, ev.StoreID)
	}
	if len(storeIDs) == 0 || resolver == nil {
		return map[string]string{}, nil
	}
	brands, err := resolver.BrandsOf(ctx, storeIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve store brands: %w", err)
	}
	return brands, nil
}
