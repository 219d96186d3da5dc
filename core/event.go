package core

import (
	"context"
	"time"
)

// EventKind 交互事件类型。
type EventKind string

const (
	EventClick    EventKind = "click"
	EventVisit    EventKind = "visit"
	EventBookmark EventKind = "bookmark"
	EventSearch   EventKind = "search"
)

// InteractionEvent 是一条隐式反馈。
//
// 品牌级事件直接带 ItemID（品牌 ID）；门店级事件只带 StoreID，
// 聚合时通过 BrandResolver 解析为品牌，解析不到的事件会被丢弃。
type InteractionEvent struct {
	UserID    string
	ItemID    string
	StoreID   string
	Kind      EventKind
	Timestamp time.Time
}

// EventLogSource 提供全量交互事件，训练时读取。
type EventLogSource interface {
	Events(ctx context.Context) ([]InteractionEvent, error)
}

// BrandResolver 将门店 ID 解析为品牌 ID。
//
// 返回的 map 只包含能解析的门店；缺失即表示不可解析。
type BrandResolver interface {
	BrandsOf(ctx context.Context, storeIDs []string) (map[string]string, error)
}

// BrandMap 是基于内存 map 的 BrandResolver。
type BrandMap map[string]string

func (m BrandMap) BrandsOf(_ context.Context, storeIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(storeIDs))
	for _, id := range storeIDs {
		if b, ok := m[id]; ok && b != "" {
			out[id] = b
		}
	}
	return out, nil
}
