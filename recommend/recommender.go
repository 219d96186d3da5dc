// Package recommend 是推荐服务的入口：组装混合推荐流水线、结果缓存与模型训练。
package recommend

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/feature"
	"github.com/rushteam/venuerec/filter"
	"github.com/rushteam/venuerec/pipeline"
	"github.com/rushteam/venuerec/pkg/metrics"
	"github.com/rushteam/venuerec/rank"
	"github.com/rushteam/venuerec/recall"
	"github.com/rushteam/venuerec/rerank"
)

// Request 一次推荐请求。TopK、RadiusKm 为 0 时使用默认值。
type Request struct {
	UserID        string
	ProfileVector []float64
	Lat           float64
	Lng           float64
	RadiusKm      float64
	TopK          int
}

// Options 构建 Recommender 的依赖与参数。
type Options struct {
	ALS     *recall.ALSRecall // 必填
	Vectors core.VectorService
	Geo     core.GeoStore // 必填
	Cache   *ResultCache

	// Profiles 供 RecommendForUser 生成画像向量
	Profiles *feature.ProfileBuilder

	Weights             rank.Weights
	DefaultTopK         int
	DefaultRadiusKm     float64
	CandidateMultiplier int
	SourceTimeout       time.Duration
	GeoTimeout          time.Duration

	// Filters 在地理解析之后执行，可以使用 item.store
	Filters []filter.Filter

	// Pipeline 非空时替代内置流水线
	Pipeline *pipeline.Pipeline

	Logger zerolog.Logger
}

// Recommender 混合推荐：ALS 与内容相似度并发召回 -> 线性融合取 TopK -> 解析最近门店。
type Recommender struct {
	als         *recall.ALSRecall
	cache       *ResultCache
	profiles    *feature.ProfileBuilder
	pipeline    *pipeline.Pipeline
	defaultTopK int
	defaultKm   float64
	logger      zerolog.Logger
}

func New(opts Options) (*Recommender, error) {
	if opts.ALS == nil {
		return nil, errors.New("recommend: ALS model is required")
	}
	if opts.Pipeline == nil && opts.Geo == nil {
		return nil, errors.New("recommend: geo store is required")
	}
	if opts.Weights == (rank.Weights{}) {
		opts.Weights = rank.DefaultWeights()
	}
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = core.DefaultTopK
	}
	if opts.DefaultRadiusKm <= 0 {
		opts.DefaultRadiusKm = core.DefaultRadiusKm
	}
	if opts.CandidateMultiplier <= 0 {
		opts.CandidateMultiplier = core.DefaultCandidateMultiplier
	}

	r := &Recommender{
		als:         opts.ALS,
		cache:       opts.Cache,
		profiles:    opts.Profiles,
		pipeline:    opts.Pipeline,
		defaultTopK: opts.DefaultTopK,
		defaultKm:   opts.DefaultRadiusKm,
		logger:      opts.Logger.With().Str("component", "recommend").Logger(),
	}
	if r.pipeline == nil {
		r.pipeline = r.defaultPipeline(opts)
	} else if len(opts.Filters) > 0 {
		r.logger.Warn().Int("filters", len(opts.Filters)).
			Msg("custom pipeline configured, filters must be declared as pipeline nodes and are ignored here")
	}
	if r.pipeline.Observer == nil {
		r.pipeline.Observer = r.observe
	}
	return r, nil
}

func (r *Recommender) defaultPipeline(opts Options) *pipeline.Pipeline {
	opts.ALS.CandidateMultiplier = opts.CandidateMultiplier
	sources := []recall.Source{opts.ALS}
	if opts.Vectors != nil {
		sources = append(sources, &recall.ContentRecall{
			Vectors:             opts.Vectors,
			Collection:          "brand",
			CandidateMultiplier: opts.CandidateMultiplier,
		})
	}

	nodes := []pipeline.Node{
		&recall.Fanout{
			Sources:       sources,
			Dedup:         true,
			Timeout:       opts.SourceTimeout,
			MergeStrategy: "first",
			FailFast:      true,
			OnError: func(source string, err error) {
				r.logger.Warn().Err(err).Str("source", source).Msg("recall source failed")
			},
		},
		&rank.HybridNode{Weights: opts.Weights},
		&rerank.GeoResolver{Store: opts.Geo, Timeout: opts.GeoTimeout},
	}
	if len(opts.Filters) > 0 {
		nodes = append(nodes, &filter.FilterNode{
			Filters: opts.Filters,
			OnError: func(name string, item *core.Item, err error) {
				r.logger.Warn().Err(err).Str("filter", name).Str("brand_id", item.ID).Msg("filter failed, item kept")
			},
		})
	}
	nodes = append(nodes, &rerank.TopNNode{})
	return &pipeline.Pipeline{Nodes: nodes}
}

func (r *Recommender) observe(node pipeline.Node, elapsed time.Duration, in, out int, err error) {
	metrics.RecordNode(node.Name(), elapsed)
	r.logger.Debug().
		Str("node", node.Name()).
		Dur("elapsed", elapsed).
		Int("in", in).
		Int("out", out).
		Err(err).
		Msg("node done")
}

// ALS 返回持有模型代的召回源，供训练与状态查询使用。
func (r *Recommender) ALS() *recall.ALSRecall {
	return r.als
}

// Recommend 返回请求位置附近的门店推荐，长度不超过 TopK，每个品牌至多一家。
//
// 结果按 (用户, 位置, 半径, TopK) 缓存；缓存不可用不影响结果。
// 内容向量或地理查询不可用时返回 UNAVAILABLE。
func (r *Recommender) Recommend(ctx context.Context, req Request) (*core.RecommendationResult, error) {
	start := time.Now()
	rctx := r.context(req)
	if err := rctx.Validate(); err != nil {
		metrics.RecordRecommend("invalid", time.Since(start))
		return nil, err
	}

	logger := r.logger.With().Str("user_id", rctx.UserID).Int("top_k", rctx.TopK).Logger()
	key := CacheKey(rctx.UserID, rctx.Lat, rctx.Lng, rctx.RadiusKm, rctx.TopK)

	res, err := r.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*core.RecommendationResult, error) {
		return r.compute(ctx, rctx)
	})
	if err != nil {
		metrics.RecordRecommend(outcome(err), time.Since(start))
		logger.Warn().Err(err).Msg("recommendation failed")
		return nil, err
	}

	metrics.RecordRecommend("ok", time.Since(start))
	logger.Debug().
		Bool("cache_hit", res.CacheHit).
		Int64("generation", res.Generation).
		Int("returned", len(res.Items)).
		Dur("latency", time.Since(start)).
		Msg("recommendation complete")
	return res, nil
}

// RecommendForUser 先由画像文本生成画像向量，再推荐。
// 画像文本为空时返回 core.ErrInsufficientProfile，不进入推荐核心。
func (r *Recommender) RecommendForUser(ctx context.Context, req Request) (*core.RecommendationResult, error) {
	if req.UserID == "" {
		return nil, core.InvalidInput("user id is required")
	}
	if r.profiles == nil {
		return nil, errors.New("recommend: profile builder not configured")
	}
	vec, err := r.profiles.Build(ctx, req.UserID)
	if err != nil {
		metrics.RecordRecommend(outcome(err), 0)
		return nil, err
	}
	req.ProfileVector = vec
	return r.Recommend(ctx, req)
}

func (r *Recommender) context(req Request) *core.RecommendContext {
	topK := req.TopK
	if topK == 0 {
		topK = r.defaultTopK
	}
	radius := req.RadiusKm
	if radius == 0 {
		radius = r.defaultKm
	}
	return &core.RecommendContext{
		UserID:        req.UserID,
		ProfileVector: req.ProfileVector,
		Lat:           req.Lat,
		Lng:           req.Lng,
		RadiusKm:      radius,
		TopK:          topK,
	}
}

func (r *Recommender) compute(ctx context.Context, rctx *core.RecommendContext) (*core.RecommendationResult, error) {
	items, err := r.pipeline.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}

	res := &core.RecommendationResult{
		UserID: rctx.UserID,
		Items:  make([]core.RecommendedStore, 0, len(items)),
	}
	if lbl, ok := rctx.GetLabel(recall.LabelGeneration); ok {
		res.Generation, _ = strconv.ParseInt(lbl.First(), 10, 64)
	}

	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if len(res.Items) >= rctx.TopK {
			break
		}
		loc, ok := rerank.StoreOf(it)
		if !ok {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		res.Items = append(res.Items, core.RecommendedStore{
			StoreID:        loc.StoreID,
			BrandID:        it.ID,
			Name:           loc.Name,
			Address:        loc.Address,
			Lat:            loc.Lat,
			Lng:            loc.Lng,
			Score:          RoundScore(it.Score),
			DistanceMeters: loc.DistanceMeters,
		})
	}
	return res, nil
}

// RoundScore 输出分数保留 4 位小数。
func RoundScore(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func outcome(err error) string {
	switch {
	case core.IsInsufficientProfile(err):
		return "insufficient_profile"
	case core.IsInvalidInput(err):
		return "invalid"
	case core.IsUnavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}
