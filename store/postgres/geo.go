package postgres

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/rushteam/venuerec/core"
)

// GeoStore 基于 PostGIS 的门店半径查询，store.location 为 geography(Point, 4326)。
type GeoStore struct {
	client *Client
}

func NewGeoStore(c *Client) *GeoStore {
	return &GeoStore{client: c}
}

// Nearby 返回半径内有品牌的门店，按距离升序、门店 ID 升序。
func (g *GeoStore) Nearby(ctx context.Context, q core.GeoQuery) ([]core.StoreLocation, error) {
	if q.RadiusMeters <= 0 {
		return nil, core.InvalidInput("radius must be > 0, got %g", q.RadiusMeters)
	}
	point := goqu.L("ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography", q.Lng, q.Lat)

	ds := g.client.qb.From(goqu.T("store").As("s")).
		Select(
			text("s.id").As("store_id"),
			text("s.brand_id").As("brand_id"),
			goqu.COALESCE(goqu.I("s.name"), "").As("name"),
			goqu.COALESCE(goqu.I("s.address"), "").As("address"),
			goqu.L("ST_Y(s.location::geometry)").As("lat"),
			goqu.L("ST_X(s.location::geometry)").As("lng"),
			goqu.L("ST_Distance(s.location, ?)", point).As("distance_m"),
		).
		Where(
			goqu.I("s.brand_id").IsNotNull(),
			goqu.L("ST_DWithin(s.location, ?, ?)", point, q.RadiusMeters),
		).
		Order(goqu.I("distance_m").Asc(), goqu.I("s.id").Asc())

	if len(q.BrandIDs) > 0 {
		ds = ds.Where(goqu.L("s.brand_id::text = ANY(?)", pq.Array(q.BrandIDs)))
	}

	var out []core.StoreLocation
	if err := g.client.selectInto(ctx, &out, "nearby stores", ds); err != nil {
		return nil, err
	}
	return out, nil
}
