package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/venuerec/core"
)

func setupMockDB(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewClient(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestEventSourceEvents(t *testing.T) {
	c, mock := setupMockDB(t)
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM "store_click_log"`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "target_id", "created_at"}).
			AddRow("u1", "s1", ts).
			AddRow("u2", "s2", nil))
	mock.ExpectQuery(`SELECT .+ FROM "brand_click_log"`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "target_id", "created_at"}).
			AddRow("u1", "b7", ts))

	events, err := NewEventSource(c).Events(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, core.InteractionEvent{UserID: "u1", StoreID: "s1", Kind: core.EventClick, Timestamp: ts}, events[0])
	assert.True(t, events[1].Timestamp.IsZero())
	assert.Equal(t, "b7", events[2].ItemID)
	assert.Empty(t, events[2].StoreID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventSourceUnavailable(t *testing.T) {
	c, mock := setupMockDB(t)
	mock.ExpectQuery(`FROM "usage_history"`).WillReturnError(errors.New("connection reset"))

	_, err := NewEventSource(c, UsageHistory).Events(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventSourceBrandsOf(t *testing.T) {
	c, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT .+ FROM "store" WHERE .*id::text = ANY\(\$1\).*"brand_id" IS NOT NULL`).
		WithArgs("{\"s1\",\"s2\"}").
		WillReturnRows(sqlmock.NewRows([]string{"store_id", "brand_id"}).AddRow("s1", "b1"))

	got, err := NewEventSource(c).BrandsOf(context.Background(), []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"s1": "b1"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())

	got, err = NewEventSource(c).BrandsOf(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGeoStoreNearby(t *testing.T) {
	c, mock := setupMockDB(t)
	cols := []string{"store_id", "brand_id", "name", "address", "lat", "lng", "distance_m"}
	mock.ExpectQuery(`ST_DWithin\(s.location, ST_SetSRID\(ST_MakePoint\(\$\d+, \$\d+\), 4326\)::geography, \$\d+\)`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("s1", "b1", "Gangnam", "Seoul", 37.498, 127.027, 120.5).
			AddRow("s9", "b2", "Yeoksam", "Seoul", 37.500, 127.036, 880.0))

	got, err := NewGeoStore(c).Nearby(context.Background(), core.GeoQuery{
		Lat: 37.4979, Lng: 127.0276, RadiusMeters: 2000, BrandIDs: []string{"b1", "b2"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].StoreID)
	assert.Equal(t, 120.5, got[0].DistanceMeters)
	assert.Equal(t, "b2", got[1].BrandID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGeoStoreRejectsRadius(t *testing.T) {
	c, _ := setupMockDB(t)
	_, err := NewGeoStore(c).Nearby(context.Background(), core.GeoQuery{Lat: 37.5, Lng: 127, RadiusMeters: 0})
	assert.True(t, core.IsInvalidInput(err))
}

func TestEmbeddingStore(t *testing.T) {
	c, mock := setupMockDB(t)
	s := NewEmbeddingStore(c, 3)

	mock.ExpectQuery(`FROM "brand_embedding" WHERE \("embedding" IS NOT NULL\) ORDER BY "brand_id" ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "vector"}).
			AddRow("b1", "[0.1,0.2,0.3]").
			AddRow("b2", "[1,0,0]"))

	got, err := s.AllEmbeddings(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, got[0].Vector)

	mock.ExpectExec(`INSERT INTO "brand_embedding" .+ ON CONFLICT \(brand_id\) DO UPDATE SET`).
		WithArgs("b3", "[0.5,0,-1]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Upsert(context.Background(), core.Embedding{ItemID: "b3", Vector: []float64{0.5, 0, -1}}))

	err = s.Upsert(context.Background(), core.Embedding{ItemID: "b4", Vector: []float64{1}})
	assert.True(t, core.IsInvalidInput(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingStoreByID(t *testing.T) {
	c, mock := setupMockDB(t)
	s := NewEmbeddingStore(c, 3)

	mock.ExpectQuery(`FROM "brand_embedding" WHERE \(\("brand_id" = \$1\) AND \("embedding" IS NOT NULL\)\) LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "vector"}).AddRow("b1", "[1,0,0]"))
	vec, ok, err := s.ByID(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 0, 0}, vec)

	mock.ExpectQuery(`FROM "brand_embedding"`).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "vector"}))
	_, ok, err = s.ByID(context.Background(), "b404")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingStoreBadVector(t *testing.T) {
	c, mock := setupMockDB(t)
	mock.ExpectQuery(`FROM "brand_embedding"`).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "vector"}).AddRow("b1", "[0.1,"))

	_, err := NewEmbeddingStore(c, 3).AllEmbeddings(context.Background())
	assert.Error(t, err)
}

func TestProfileSource(t *testing.T) {
	c, mock := setupMockDB(t)
	rows := func(vals ...string) *sqlmock.Rows {
		r := sqlmock.NewRows([]string{"text"})
		for _, v := range vals {
			r.AddRow(v)
		}
		return r
	}
	mock.ExpectQuery(`FROM "user_category" AS "l" INNER JOIN "category" AS "t"`).WithArgs("42").WillReturnRows(rows("cafe", "bakery"))
	mock.ExpectQuery(`FROM "usage_history" AS "l" INNER JOIN "store" AS "t"`).WithArgs("42").WillReturnRows(rows("Gangnam Branch"))
	mock.ExpectQuery(`FROM "bookmark" AS "l" INNER JOIN "brand" AS "t"`).WithArgs("42").WillReturnRows(rows())
	mock.ExpectQuery(`FROM "store_click_log" AS "l" INNER JOIN "store" AS "t"`).WithArgs("42").WillReturnRows(rows("Yeoksam"))
	mock.ExpectQuery(`FROM "search_log"`).WithArgs("42").WillReturnRows(rows("latte"))

	p, err := NewProfileSource(c).ProfileTexts(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"cafe", "bakery"}, p.Categories)
	assert.Empty(t, p.BookmarkBrands)
	assert.Equal(t, []string{"cafe", "bakery", "Gangnam Branch", "Yeoksam", "latte"}, p.Parts())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBrandCatalog(t *testing.T) {
	c, mock := setupMockDB(t)
	mock.ExpectQuery(`FROM "brand" AS "b" LEFT JOIN "category" AS "c"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "category"}).
			AddRow("1", "Blue Bottle", "specialty coffee", "cafe"))

	brands, err := NewBrandCatalog(c).Brands(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.Brand{{ID: "1", Name: "Blue Bottle", Description: "specialty coffee", Category: "cafe"}}, brands)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCatalog(t *testing.T) {
	c, mock := setupMockDB(t)
	mock.ExpectQuery(`FROM "store" AS "s" INNER JOIN "brand" AS "b" .+ LEFT JOIN "category" AS "c"`).
		WillReturnRows(sqlmock.NewRows([]string{"store_id", "id", "name", "description", "category"}).
			AddRow("10", "1", "Blue Bottle", "specialty coffee", "cafe"))

	stores, err := NewStoreCatalog(c).StoreBrands(context.Background())
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "10", stores[0].StoreID)
	assert.Equal(t, core.Brand{ID: "1", Name: "Blue Bottle", Description: "specialty coffee", Category: "cafe"}, stores[0].Brand)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreEmbeddingStore(t *testing.T) {
	c, mock := setupMockDB(t)
	s := NewStoreEmbeddingStore(c, 3)

	mock.ExpectExec(`INSERT INTO "store_embedding" .+ ON CONFLICT \(store_id\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Upsert(context.Background(), core.Embedding{ItemID: "10", Vector: []float64{1, 0, 0}}))

	mock.ExpectQuery(`FROM "store_embedding" WHERE \("embedding" IS NOT NULL\) ORDER BY "store_id" ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "vector"}).AddRow("10", "[1,0,0]"))
	got, err := s.AllEmbeddings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.Embedding{{ItemID: "10", Vector: []float64{1, 0, 0}}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVectorText(t *testing.T) {
	assert.Equal(t, "[0.25,-1,3]", vectorToString([]float64{0.25, -1, 3}))
	v, err := parseVector("[]")
	require.NoError(t, err)
	assert.Nil(t, v)
}
