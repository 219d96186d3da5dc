package core

import "context"

// StoreLocation 门店及其到查询点的距离。
type StoreLocation struct {
	StoreID        string  `json:"store_id" db:"store_id"`
	BrandID        string  `json:"brand_id" db:"brand_id"`
	Name           string  `json:"name" db:"name"`
	Address        string  `json:"address" db:"address"`
	Lat            float64 `json:"lat" db:"lat"`
	Lng            float64 `json:"lng" db:"lng"`
	DistanceMeters float64 `json:"distance_m" db:"distance_m"`
}

// GeoQuery 半径查询参数。BrandIDs 为空时不按品牌过滤。
type GeoQuery struct {
	Lat          float64
	Lng          float64
	RadiusMeters float64
	BrandIDs     []string
}

// GeoStore 地理查询接口。
//
// Nearby 返回半径内的门店，必须按距离升序排列。
type GeoStore interface {
	Nearby(ctx context.Context, q GeoQuery) ([]StoreLocation, error)
}
