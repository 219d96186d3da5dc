package feature

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/store"
)

// lengthEncoder 把文本编码为 [len(text), 1]，并记录调用次数。
type lengthEncoder struct {
	calls atomic.Int32
	err   error
	fail  string
}

func (e *lengthEncoder) Encode(_ context.Context, text string) ([]float64, error) {
	e.calls.Add(1)
	if e.err != nil || (e.fail != "" && strings.Contains(text, e.fail)) {
		return nil, errors.New("encoder down")
	}
	return []float64{float64(len(text)), 1}, nil
}

type staticCatalog []core.Brand

func (c staticCatalog) Brands(context.Context) ([]core.Brand, error) { return c, nil }

type staticStores []core.StoreBrand

func (c staticStores) StoreBrands(context.Context) ([]core.StoreBrand, error) { return c, nil }

func TestProfileBuilderText(t *testing.T) {
	src := store.NewMemoryEventSource()
	src.SetProfile("u1", core.ProfileTexts{
		Categories:     []string{"cafe", "bakery"},
		VisitedStores:  []string{"Blue Bottle Seongsu"},
		BookmarkBrands: []string{"specialty coffee roaster"},
		ClickedStores:  nil,
		SearchKeywords: []string{"latte"},
	})
	b := &ProfileBuilder{Source: src, Encoder: &lengthEncoder{}}

	text, err := b.Text(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "cafe; bakery; Blue Bottle Seongsu; specialty coffee roaster; latte", text)

	vec, err := b.Build(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []float64{float64(len(text)), 1}, vec)
}

func TestProfileBuilderInsufficient(t *testing.T) {
	enc := &lengthEncoder{}
	b := &ProfileBuilder{Source: store.NewMemoryEventSource(), Encoder: enc}

	_, err := b.Build(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrInsufficientProfile)
	assert.Equal(t, int32(0), enc.calls.Load())
}

func TestProfileBuilderEncoderDown(t *testing.T) {
	src := store.NewMemoryEventSource()
	src.SetProfile("u1", core.ProfileTexts{SearchKeywords: []string{"ramen"}})
	b := &ProfileBuilder{Source: src, Encoder: &lengthEncoder{err: errors.New("x")}}

	_, err := b.Build(context.Background(), "u1")
	assert.True(t, core.IsUnavailable(err))
}

func TestCachedEncoder(t *testing.T) {
	inner := &lengthEncoder{}
	cache := NewVectorCache(2, time.Minute)
	defer cache.Close()
	enc := &CachedEncoder{Encoder: inner, Cache: cache}

	for i := 0; i < 3; i++ {
		_, err := enc.Encode(context.Background(), "same text")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), inner.calls.Load())

	_, _ = enc.Encode(context.Background(), "b")
	_, _ = enc.Encode(context.Background(), "c")
	assert.Equal(t, 2, cache.Len())
}

func TestVectorCacheExpiry(t *testing.T) {
	cache := NewVectorCache(10, time.Minute)
	defer cache.Close()
	cache.Set("k", []float64{1})

	_, ok := cache.Get("k")
	assert.True(t, ok)

	cache.cleanExpired(time.Now().Add(2 * time.Minute))
	_, ok = cache.Get("k")
	assert.False(t, ok)
}

func TestEmbeddingIndexer(t *testing.T) {
	es := store.NewMemoryEmbeddingStore(0)
	x := &EmbeddingIndexer{
		Source: BrandDocuments{Catalog: staticCatalog{
			{ID: "b1", Name: "Onion", Description: "bakery cafe", Category: "cafe"},
			{ID: "b2", Name: "Broken", Description: "bad", Category: "x"},
		}},
		Encoder: &lengthEncoder{fail: "Broken"},
		Store:   es,
	}

	res, err := x.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Indexed)
	assert.Equal(t, []string{"b2"}, res.Failed)

	all, _ := es.AllEmbeddings(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, float64(len("Onion . bakery cafe. cafe")), all[0].Vector[0])
}

func TestStoreEmbeddingIndexer(t *testing.T) {
	onion := core.Brand{ID: "b1", Name: "Onion", Description: "bakery cafe", Category: "cafe"}
	es := store.NewMemoryEmbeddingStore(0)
	x := &EmbeddingIndexer{
		Source: StoreDocuments{Catalog: staticStores{
			{StoreID: "s1", Brand: onion},
			{StoreID: "s2", Brand: onion},
		}},
		Encoder: &lengthEncoder{},
		Store:   es,
	}

	res, err := x.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Indexed)

	vec, ok, err := es.ByID(context.Background(), "s2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(len("Onion. bakery cafe. cafe")), vec[0])
}

func TestEmbeddingIndexerCatalogDown(t *testing.T) {
	x := &EmbeddingIndexer{
		Source:  StoreDocuments{Catalog: failingStores{}},
		Encoder: &lengthEncoder{},
		Store:   store.NewMemoryEmbeddingStore(0),
	}
	_, err := x.Run(context.Background())
	assert.True(t, core.IsUnavailable(err))
}

type failingStores struct{}

func (failingStores) StoreBrands(context.Context) ([]core.StoreBrand, error) {
	return nil, errors.New("connection refused")
}

func TestBrandText(t *testing.T) {
	assert.Equal(t, "Name . Desc. Cat", BrandText(core.Brand{Name: "Name", Description: "Desc", Category: "Cat"}))
	assert.Equal(t, " . . ", BrandText(core.Brand{}))
	assert.Equal(t, "Name. Desc. Cat", StoreText(core.Brand{Name: "Name", Description: "Desc", Category: "Cat"}))
}
