package recommend

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/feature"
	"github.com/rushteam/venuerec/filter"
	"github.com/rushteam/venuerec/model"
	"github.com/rushteam/venuerec/pipeline"
	"github.com/rushteam/venuerec/rank"
	"github.com/rushteam/venuerec/recall"
	"github.com/rushteam/venuerec/rerank"
	"github.com/rushteam/venuerec/store"
	"github.com/rushteam/venuerec/vector"
)

const (
	userLat = 37.5
	userLng = 127.0
)

// countingVectors 统计向量检索次数，可注入错误。
type countingVectors struct {
	inner core.VectorService
	calls atomic.Int32
	err   error
}

func (c *countingVectors) Search(ctx context.Context, req *core.VectorSearchRequest) (*core.VectorSearchResult, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Search(ctx, req)
}

func (c *countingVectors) Close() error { return nil }

type fakeEncoder struct {
	vec   []float64
	calls atomic.Int32
}

func (e *fakeEncoder) Encode(_ context.Context, _ string) ([]float64, error) {
	e.calls.Add(1)
	return e.vec, nil
}

// failingStore 读取总是未命中或出错，写入总是失败。
type failingStore struct {
	getErr error
	sets   atomic.Int32
}

func (s *failingStore) Name() string { return "failing" }
func (s *failingStore) Get(context.Context, string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return nil, core.ErrStoreNotFound
}
func (s *failingStore) Set(context.Context, string, []byte, ...int) error {
	s.sets.Add(1)
	return errors.New("redis: connection refused")
}
func (s *failingStore) Delete(context.Context, string) error { return nil }
func (s *failingStore) Close() error                         { return nil }

type fixture struct {
	embeddings *store.MemoryEmbeddingStore
	geo        *store.MemoryGeoStore
	vectors    *countingVectors
	als        *recall.ALSRecall
	cache      *store.MemoryStore
	events     *store.MemoryEventSource
	encoder    *fakeEncoder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	emb := store.NewMemoryEmbeddingStore(3)
	for id, v := range map[string][]float64{
		"b1": {1, 0, 0},
		"b2": {0.8, 0.6, 0},
		"b3": {0.6, 0.8, 0},
		"b4": {1, 0, 0}, // 最相似，但附近没有门店
	} {
		require.NoError(t, emb.Upsert(ctx, core.Embedding{ItemID: id, Vector: v}))
	}

	geo := store.NewMemoryGeoStore(
		core.StoreLocation{StoreID: "s1", BrandID: "b1", Name: "b1 near", Lat: 37.501, Lng: userLng},
		core.StoreLocation{StoreID: "s1b", BrandID: "b1", Name: "b1 far", Lat: 37.503, Lng: userLng},
		core.StoreLocation{StoreID: "s2", BrandID: "b2", Name: "b2", Lat: 37.505, Lng: userLng},
		core.StoreLocation{StoreID: "s3", BrandID: "b3", Name: "b3", Lat: 37.51, Lng: userLng},
		core.StoreLocation{StoreID: "s4", BrandID: "b4", Name: "b4", Lat: 37.60, Lng: userLng},
	)

	cache := store.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = cache.Close() })

	return &fixture{
		embeddings: emb,
		geo:        geo,
		vectors:    &countingVectors{inner: vector.NewScanService(emb, zerolog.Nop())},
		als:        recall.NewALSRecall(&model.ALS{Factors: 4, Regularization: 0.01, Iterations: 5, Alpha: 1, Workers: 2}),
		cache:      cache,
		events:     store.NewMemoryEventSource(),
		encoder:    &fakeEncoder{vec: []float64{1, 0, 0}},
	}
}

func (f *fixture) recommender(t *testing.T, mutate ...func(*Options)) *Recommender {
	t.Helper()
	opts := Options{
		ALS:      f.als,
		Vectors:  f.vectors,
		Geo:      f.geo,
		Cache:    NewResultCache(f.cache, time.Hour, zerolog.Nop()),
		Profiles: &feature.ProfileBuilder{Source: f.events, Encoder: f.encoder},
		Logger:   zerolog.Nop(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

func request(topK int) Request {
	return Request{UserID: "u1", ProfileVector: []float64{1, 0, 0}, Lat: userLat, Lng: userLng, RadiusKm: 2, TopK: topK}
}

func brandIDs(res *core.RecommendationResult) []string {
	out := make([]string, 0, len(res.Items))
	for _, it := range res.Items {
		out = append(out, it.BrandID)
	}
	return out
}

func TestRecommendColdStartFollowsContent(t *testing.T) {
	f := newFixture(t)
	r := f.recommender(t)

	res, err := r.Recommend(context.Background(), request(10))
	require.NoError(t, err)

	assert.Equal(t, []string{"b1", "b2", "b3"}, brandIDs(res))
	assert.Equal(t, int64(0), res.Generation)
	assert.False(t, res.CacheHit)

	// 冷启动时融合分只来自内容相似度
	assert.Equal(t, 0.5, res.Items[0].Score)
	assert.Equal(t, 0.4, res.Items[1].Score)
	assert.Equal(t, 0.3, res.Items[2].Score)
	assert.Equal(t, "s1", res.Items[0].StoreID, "nearest store of the brand")
}

func TestRecommendDropsBrandsOutsideRadius(t *testing.T) {
	f := newFixture(t)
	r := f.recommender(t)

	res, err := r.Recommend(context.Background(), request(10))
	require.NoError(t, err)
	assert.NotContains(t, brandIDs(res), "b4")

	// 半径扩大到 15km 后 b4 出现，且与 b1 同分时按品牌 ID 排在后面
	wide := request(10)
	wide.RadiusKm = 15
	res, err = r.Recommend(context.Background(), wide)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b4", "b2", "b3"}, brandIDs(res))
}

func TestRecommendBoundedAndUnique(t *testing.T) {
	f := newFixture(t)
	r := f.recommender(t)

	for _, topK := range []int{1, 2, 3, 10} {
		res, err := r.Recommend(context.Background(), request(topK))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res.Items), topK)

		seen := map[string]bool{}
		for _, it := range res.Items {
			assert.False(t, seen[it.BrandID], "duplicate brand %s", it.BrandID)
			seen[it.BrandID] = true
		}
	}
}

func TestRecommendCacheHitIsIdentical(t *testing.T) {
	f := newFixture(t)
	r := f.recommender(t)
	ctx := context.Background()

	first, err := r.Recommend(ctx, request(10))
	require.NoError(t, err)
	calls := f.vectors.calls.Load()

	// 缓存期内数据变化不影响结果
	require.NoError(t, f.embeddings.Upsert(ctx, core.Embedding{ItemID: "b9", Vector: []float64{1, 0, 0}}))
	f.geo.Add(core.StoreLocation{StoreID: "s9", BrandID: "b9", Lat: userLat, Lng: userLng})

	second, err := r.Recommend(ctx, request(10))
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, calls, f.vectors.calls.Load(), "cache hit must not recompute")

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	// 不同的 TopK 是另一个 key
	third, err := r.Recommend(ctx, request(2))
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.Equal(t, []string{"b1"}, brandIDs(third), "b9 ties with b1 and b4 and loses on brand id")
}

func TestRecommendCacheFailureStillServes(t *testing.T) {
	tests := []struct {
		name   string
		getErr error
	}{
		{"write fails", nil},
		{"read and write fail", errors.New("i/o timeout")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			fs := &failingStore{getErr: tt.getErr}
			r := f.recommender(t, func(o *Options) {
				o.Cache = NewResultCache(fs, time.Hour, zerolog.Nop())
			})

			res, err := r.Recommend(context.Background(), request(10))
			require.NoError(t, err)
			assert.Equal(t, []string{"b1", "b2", "b3"}, brandIDs(res))
			assert.Equal(t, int32(1), fs.sets.Load())
		})
	}
}

func TestRecommendPropagatesUnavailable(t *testing.T) {
	f := newFixture(t)
	f.vectors.err = errors.New("connection refused")
	r := f.recommender(t)

	_, err := r.Recommend(context.Background(), request(10))
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))
	assert.Zero(t, f.cache.Len(), "errors are not cached")
}

func TestRecommendInvalidInput(t *testing.T) {
	f := newFixture(t)
	r := f.recommender(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"negative topK", Request{UserID: "u1", Lat: userLat, Lng: userLng, TopK: -1}},
		{"negative radius", Request{UserID: "u1", Lat: userLat, Lng: userLng, RadiusKm: -1}},
		{"latitude out of range", Request{UserID: "u1", Lat: 91, Lng: userLng}},
		{"missing user", Request{Lat: userLat, Lng: userLng}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Recommend(context.Background(), tt.req)
			assert.True(t, core.IsInvalidInput(err))
		})
	}
}

func TestRecommendDefaults(t *testing.T) {
	f := newFixture(t)
	r := f.recommender(t)

	res, err := r.Recommend(context.Background(), Request{UserID: "u1", ProfileVector: []float64{1, 0, 0}, Lat: userLat, Lng: userLng})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2", "b3"}, brandIDs(res))

	_, err = f.cache.Get(context.Background(), CacheKey("u1", userLat, userLng, 2, 10))
	assert.NoError(t, err, "defaults are part of the cache key")
}

func TestRecommendWithFilters(t *testing.T) {
	f := newFixture(t)
	expr, err := filter.NewExprFilter("item.store.distance_m > 1000.0")
	require.NoError(t, err)
	r := f.recommender(t, func(o *Options) {
		o.Filters = []filter.Filter{filter.NewBlocklistFilter([]string{"b2"}), expr}
	})

	res, err := r.Recommend(context.Background(), request(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, brandIDs(res))
}

// loosePipeline 与 YAML 可描述的流水线一致，但截断数大于请求的 TopK。
func (f *fixture) loosePipeline() *pipeline.Pipeline {
	return &pipeline.Pipeline{Nodes: []pipeline.Node{
		&recall.Fanout{
			Sources: []recall.Source{
				f.als,
				&recall.ContentRecall{Vectors: f.vectors, Collection: "brand", TopK: 10},
			},
			Dedup:    true,
			FailFast: true,
		},
		&rank.HybridNode{Weights: rank.DefaultWeights(), TopK: 10},
		&rerank.GeoResolver{Store: f.geo},
		&rerank.TopNNode{N: 10},
	}}
}

func TestRecommendCustomPipelineBoundedByTopK(t *testing.T) {
	f := newFixture(t)
	r := f.recommender(t, func(o *Options) { o.Pipeline = f.loosePipeline() })

	for _, topK := range []int{1, 2} {
		req := request(topK)
		req.RadiusKm = 15
		res, err := r.Recommend(context.Background(), req)
		require.NoError(t, err)
		assert.Len(t, res.Items, topK)
	}

	req := request(1)
	req.RadiusKm = 15
	req.UserID = "u2"
	res, err := r.Recommend(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, brandIDs(res))
}

func TestNewWarnsFiltersIgnoredWithCustomPipeline(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	f.recommender(t, func(o *Options) {
		o.Pipeline = f.loosePipeline()
		o.Filters = []filter.Filter{filter.NewBlocklistFilter([]string{"b2"})}
		o.Logger = zerolog.New(&buf)
	})
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "filters")

	buf.Reset()
	f.recommender(t, func(o *Options) {
		o.Filters = []filter.Filter{filter.NewBlocklistFilter([]string{"b2"})}
		o.Logger = zerolog.New(&buf)
	})
	assert.NotContains(t, buf.String(), "ignored")
}

func TestRecommendForUserInsufficientProfile(t *testing.T) {
	f := newFixture(t)
	r := f.recommender(t)

	_, err := r.RecommendForUser(context.Background(), Request{UserID: "ghost", Lat: userLat, Lng: userLng})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInsufficientProfile)
	assert.Zero(t, f.encoder.calls.Load())
	assert.Zero(t, f.vectors.calls.Load(), "core not invoked")
}

func TestRecommendForUser(t *testing.T) {
	f := newFixture(t)
	f.events.SetProfile("u1", core.ProfileTexts{Categories: []string{"cafe"}, SearchKeywords: []string{"latte"}})
	r := f.recommender(t)

	res, err := r.RecommendForUser(context.Background(), Request{UserID: "u1", Lat: userLat, Lng: userLng})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2", "b3"}, brandIDs(res))
	assert.Equal(t, int32(1), f.encoder.calls.Load())
}

func TestRecommendAfterTraining(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.events.Append(
			core.InteractionEvent{UserID: "u1", ItemID: "b3", Kind: core.EventClick},
			core.InteractionEvent{UserID: "u2", ItemID: "b3", Kind: core.EventClick},
			core.InteractionEvent{UserID: "u2", StoreID: "s2", Kind: core.EventClick},
		)
	}
	trainer := NewTrainer(f.events, f.geo, f.als, TrainerConfig{}, zerolog.Nop())
	gen, err := trainer.Train(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), gen.Number)

	r := f.recommender(t)
	res, err := r.Recommend(context.Background(), request(10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Generation)
	assert.NotEmpty(t, res.Items)

	// 未进入模型的用户仍只按内容排序
	cold := request(10)
	cold.UserID = "newcomer"
	res, err = r.Recommend(context.Background(), cold)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2", "b3"}, brandIDs(res))
	assert.Equal(t, int64(1), res.Generation)
}

func TestNewValidatesOptions(t *testing.T) {
	f := newFixture(t)

	_, err := New(Options{Geo: f.geo})
	assert.Error(t, err)

	_, err = New(Options{ALS: f.als})
	assert.Error(t, err)

	_, err = New(Options{ALS: f.als, Geo: f.geo, Weights: rank.Weights{CF: 0.7, Content: 0.8}})
	assert.Error(t, err)
}

func TestRoundScore(t *testing.T) {
	assert.Equal(t, 0.5556, RoundScore(0.55555))
	assert.Equal(t, 0.4, RoundScore(0.39999999999))
	assert.Equal(t, 0.0, RoundScore(0))
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "rec:u1:37.5:127:2:10", CacheKey("u1", 37.5, 127, 2, 10))
	assert.NotEqual(t, CacheKey("u1", 37.5, 127, 2, 10), CacheKey("u1", 37.5, 127, 3, 10))
}
