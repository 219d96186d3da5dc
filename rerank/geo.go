package rerank

import (
	"context"
	"time"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/pipeline"
	"github.com/rushteam/venuerec/pkg/utils"
)

// MetaStore 是最近门店在 Item.Meta 中的 key，值类型为 core.StoreLocation。
const MetaStore = "store"

// GeoResolver 把排好序的品牌候选解析为请求位置附近的门店。
//
// 每个品牌只保留距离最近的一家门店；半径内没有门店的品牌被丢弃；
// 输出保持输入的排序，分数沿用品牌的融合分。
type GeoResolver struct {
	Store   core.GeoStore
	Timeout time.Duration
}

func (n *GeoResolver) Name() string        { return "rerank.geo" }
func (n *GeoResolver) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *GeoResolver) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	if rctx == nil || rctx.RadiusKm <= 0 {
		return nil, core.InvalidInput("radius must be > 0")
	}

	brandIDs := make([]string, 0, len(items))
	for _, it := range items {
		if it != nil {
			brandIDs = append(brandIDs, it.ID)
		}
	}

	nearest, err := n.Nearest(ctx, core.GeoQuery{
		Lat:          rctx.Lat,
		Lng:          rctx.Lng,
		RadiusMeters: rctx.RadiusMeters(),
		BrandIDs:     brandIDs,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, len(items))
	emitted := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		loc, ok := nearest[it.ID]
		if !ok {
			continue
		}
		if _, dup := emitted[it.ID]; dup {
			continue
		}
		emitted[it.ID] = struct{}{}
		if it.Meta == nil {
			it.Meta = make(map[string]any)
		}
		it.Meta[MetaStore] = loc
		it.PutLabel("store_id", utils.Label{Value: loc.StoreID, Source: "rerank"})
		out = append(out, it)
	}
	return out, nil
}

// Nearest 查询半径内门店并按品牌去重，保留每个品牌距离最近的一家。
func (n *GeoResolver) Nearest(ctx context.Context, q core.GeoQuery) (map[string]core.StoreLocation, error) {
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}
	stores, err := n.Store.Nearby(ctx, q)
	if err != nil {
		if core.IsDomainError(err) {
			return nil, err
		}
		return nil, core.Unavailable(core.ModuleGeo, err)
	}

	nearest := make(map[string]core.StoreLocation, len(stores))
	for _, s := range stores {
		if s.BrandID == "" {
			continue
		}
		// Nearby 按距离升序返回，首个即最近；距离相同时保留先出现的
		if cur, ok := nearest[s.BrandID]; !ok || s.DistanceMeters < cur.DistanceMeters {
			nearest[s.BrandID] = s
		}
	}
	return nearest, nil
}

// StoreOf 读取 GeoResolver 写入的门店。
func StoreOf(it *core.Item) (core.StoreLocation, bool) {
	if it == nil || it.Meta == nil {
		return core.StoreLocation{}, false
	}
	loc, ok := it.Meta[MetaStore].(core.StoreLocation)
	return loc, ok
}
