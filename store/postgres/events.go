package postgres

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/rushteam/venuerec/core"
)

// EventTable 描述一张交互日志表。Column 为 store_id 时是门店级事件，
// 为 brand_id 时是品牌级事件。
type EventTable struct {
	Name   string
	Column string
	Kind   core.EventKind
}

var (
	StoreClickLog = EventTable{Name: "store_click_log", Column: "store_id", Kind: core.EventClick}
	BrandClickLog = EventTable{Name: "brand_click_log", Column: "brand_id", Kind: core.EventClick}
	UsageHistory  = EventTable{Name: "usage_history", Column: "store_id", Kind: core.EventVisit}
	Bookmarks     = EventTable{Name: "bookmark", Column: "brand_id", Kind: core.EventBookmark}

	// DefaultEventTables 训练默认只使用两类点击日志
	DefaultEventTables = []EventTable{StoreClickLog, BrandClickLog}
)

// EventSource 从交互日志表读取训练事件，同时负责门店到品牌的解析。
type EventSource struct {
	client *Client
	tables []EventTable
}

// NewEventSource 不传 tables 时使用 DefaultEventTables。
func NewEventSource(c *Client, tables ...EventTable) *EventSource {
	if len(tables) == 0 {
		tables = DefaultEventTables
	}
	return &EventSource{client: c, tables: tables}
}

type eventRow struct {
	UserID    string       `db:"user_id"`
	TargetID  string       `db:"target_id"`
	CreatedAt sql.NullTime `db:"created_at"`
}

// Events 按表的顺序依次读取全部事件。
func (s *EventSource) Events(ctx context.Context) ([]core.InteractionEvent, error) {
	var out []core.InteractionEvent
	for _, t := range s.tables {
		ds := s.client.qb.From(t.Name).
			Select(
				text("user_id").As("user_id"),
				text(t.Column).As("target_id"),
				goqu.C("created_at"),
			).
			Where(goqu.C("user_id").IsNotNull(), goqu.C(t.Column).IsNotNull()).
			Order(goqu.C("id").Asc())

		var rows []eventRow
		if err := s.client.selectInto(ctx, &rows, t.Name, ds); err != nil {
			return nil, err
		}
		for _, r := range rows {
			ev := core.InteractionEvent{UserID: r.UserID, Kind: t.Kind, Timestamp: r.CreatedAt.Time}
			if t.Column == "brand_id" {
				ev.ItemID = r.TargetID
			} else {
				ev.StoreID = r.TargetID
			}
			out = append(out, ev)
		}
	}
	return out, nil
}

type storeBrandRow struct {
	StoreID string `db:"store_id"`
	BrandID string `db:"brand_id"`
}

// BrandsOf 批量解析门店所属品牌；没有品牌的门店不出现在结果中。
func (s *EventSource) BrandsOf(ctx context.Context, storeIDs []string) (map[string]string, error) {
	if len(storeIDs) == 0 {
		return map[string]string{}, nil
	}
	ds := s.client.qb.From("store").
		Select(text("id").As("store_id"), text("brand_id").As("brand_id")).
		Where(
			goqu.L("id::text = ANY(?)", pq.Array(storeIDs)),
			goqu.C("brand_id").IsNotNull(),
		)

	var rows []storeBrandRow
	if err := s.client.selectInto(ctx, &rows, "store brands", ds); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.StoreID] = r.BrandID
	}
	return out, nil
}
