package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/store"
)

type brokenGeo struct{}

func (brokenGeo) Nearby(context.Context, core.GeoQuery) ([]core.StoreLocation, error) {
	return nil, errors.New("postgis down")
}

func rankedItems(ids ...string) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for i, id := range ids {
		it := core.NewItem(id)
		it.Score = 1 - float64(i)*0.1
		out = append(out, it)
	}
	return out
}

func TestGeoResolver(t *testing.T) {
	geo := store.NewMemoryGeoStore(
		core.StoreLocation{StoreID: "b1-far", BrandID: "b1", Lat: 37.510, Lng: 127.0},
		core.StoreLocation{StoreID: "b1-near", BrandID: "b1", Lat: 37.501, Lng: 127.0},
		core.StoreLocation{StoreID: "b2-only", BrandID: "b2", Lat: 37.505, Lng: 127.0},
		core.StoreLocation{StoreID: "b3-outside", BrandID: "b3", Lat: 37.700, Lng: 127.0},
	)
	n := &GeoResolver{Store: geo}
	rctx := &core.RecommendContext{Lat: 37.5, Lng: 127.0, RadiusKm: 2}

	// b3 融合分最高但半径内没有门店
	out, err := n.Process(context.Background(), rctx, rankedItems("b3", "b2", "b1", "b9"))
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "b2", out[0].ID)
	assert.Equal(t, "b1", out[1].ID)
	assert.InDelta(t, 0.9, out[0].Score, 1e-9)

	loc, ok := StoreOf(out[1])
	require.True(t, ok)
	assert.Equal(t, "b1-near", loc.StoreID)
	assert.Equal(t, "b1-near", out[1].Labels["store_id"].Value)
}

func TestGeoResolverUniqueBrands(t *testing.T) {
	geo := store.NewMemoryGeoStore(
		core.StoreLocation{StoreID: "s1", BrandID: "b1", Lat: 37.5001, Lng: 127.0},
		core.StoreLocation{StoreID: "s2", BrandID: "b1", Lat: 37.5002, Lng: 127.0},
	)
	n := &GeoResolver{Store: geo}
	out, err := n.Process(context.Background(), &core.RecommendContext{Lat: 37.5, Lng: 127.0, RadiusKm: 1}, rankedItems("b1", "b1"))
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestGeoResolverErrors(t *testing.T) {
	n := &GeoResolver{Store: brokenGeo{}}
	_, err := n.Process(context.Background(), &core.RecommendContext{RadiusKm: 2}, rankedItems("b1"))
	assert.True(t, core.IsUnavailable(err))

	_, err = n.Process(context.Background(), &core.RecommendContext{RadiusKm: 0}, rankedItems("b1"))
	assert.True(t, core.IsInvalidInput(err))

	out, err := n.Process(context.Background(), &core.RecommendContext{RadiusKm: 0}, nil)
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestTopNNode(t *testing.T) {
	items := rankedItems("a", "b", "c")
	out, _ := (&TopNNode{N: 2}).Process(context.Background(), nil, items)
	assert.Len(t, out, 2)

	out, _ = (&TopNNode{}).Process(context.Background(), &core.RecommendContext{TopK: 1}, items)
	assert.Len(t, out, 1)

	out, _ = (&TopNNode{}).Process(context.Background(), &core.RecommendContext{}, items)
	assert.Len(t, out, 3)
}
