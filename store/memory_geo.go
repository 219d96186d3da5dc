package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/pkg/geo"
)

// MemoryGeoStore 是内存实现的 GeoStore，用 haversine 距离做半径过滤。
type MemoryGeoStore struct {
	mu     sync.RWMutex
	stores []core.StoreLocation
}

func NewMemoryGeoStore(stores ...core.StoreLocation) *MemoryGeoStore {
	return &MemoryGeoStore{stores: stores}
}

// Add 添加门店。
func (m *MemoryGeoStore) Add(s core.StoreLocation) {
	m.mu.Lock()
	m.stores = append(m.stores, s)
	m.mu.Unlock()
}

// Nearby 返回半径内的门店，距离升序，同距离按 StoreID 升序。
func (m *MemoryGeoStore) Nearby(_ context.Context, q core.GeoQuery) ([]core.StoreLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.StoreLocation
	for _, s := range m.stores {
		if len(q.BrandIDs) > 0 && !slices.Contains(q.BrandIDs, s.BrandID) {
			continue
		}
		d := geo.Haversine(q.Lat, q.Lng, s.Lat, s.Lng)
		if d > q.RadiusMeters {
			continue
		}
		s.DistanceMeters = d
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].StoreID < out[j].StoreID
	})
	return out, nil
}

// BrandsOf 用已登记的门店把门店 ID 解析为品牌 ID。
func (m *MemoryGeoStore) BrandsOf(_ context.Context, storeIDs []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[string]struct{}, len(storeIDs))
	for _, id := range storeIDs {
		want[id] = struct{}{}
	}
	out := make(map[string]string, len(storeIDs))
	for _, s := range m.stores {
		if _, ok := want[s.StoreID]; ok && s.BrandID != "" {
			out[s.StoreID] = s.BrandID
		}
	}
	return out, nil
}
