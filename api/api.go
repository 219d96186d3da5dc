// Package api 推荐服务的 HTTP 接口，基于 chi。
//
// 路由：
//
//	GET  /api/recommend/hybrid   混合推荐
//	POST /api/admin/train        触发一次训练
//	GET  /api/admin/model        当前模型代与最近一次训练状态
//	POST /api/vectors/brand      重新生成品牌内容向量
//	GET  /api/vectors/brand/{id} 查看单个品牌向量
//	POST /api/vectors/store      重新生成门店内容向量
//	GET  /health                 健康检查
//	GET  /metrics                Prometheus 指标
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/feature"
	"github.com/rushteam/venuerec/recall"
	"github.com/rushteam/venuerec/recommend"
)

// Recommender 由 recommend.Recommender 实现。
type Recommender interface {
	RecommendForUser(ctx context.Context, req recommend.Request) (*core.RecommendationResult, error)
}

// Trainer 由 recommend.Trainer 实现。
type Trainer interface {
	Train(ctx context.Context) (*recall.Generation, error)
	Status() recommend.TrainStatus
}

// Indexer 由 feature.EmbeddingIndexer 实现，品牌与门店各一个。
type Indexer interface {
	Run(ctx context.Context) (*feature.IndexResult, error)
}

// EmbeddingReader 由 core.EmbeddingStore 实现。
type EmbeddingReader interface {
	ByID(ctx context.Context, itemID string) ([]float64, bool, error)
}

// HealthCheck 依赖的探活函数，例如 Redis / Postgres 的 Ping。
type HealthCheck func(ctx context.Context) error

// Handler 持有各路由需要的依赖。Indexer / StoreIndex 为空时不注册对应的向量路由。
type Handler struct {
	Recommender Recommender
	Trainer     Trainer
	Indexer     Indexer
	StoreIndex  Indexer
	Embeddings  EmbeddingReader
	Checks      map[string]HealthCheck
	Logger      zerolog.Logger

	validate *validator.Validate
}

// NewHandler 创建 Handler。
func NewHandler(rec Recommender, trainer Trainer, logger zerolog.Logger) *Handler {
	return &Handler{
		Recommender: rec,
		Trainer:     trainer,
		Checks:      map[string]HealthCheck{},
		Logger:      logger.With().Str("component", "api").Logger(),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router 返回挂好中间件与全部路由的 http.Handler。
func (h *Handler) Router() http.Handler {
	if h.validate == nil {
		h.validate = validator.New(validator.WithRequiredStructEnabled())
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(h.Logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/recommend/hybrid", h.RecommendHybrid)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/train", h.Train)
			r.Get("/model", h.ModelStatus)
		})

		if h.Indexer != nil {
			r.Post("/vectors/brand", h.IndexBrands)
		}
		if h.StoreIndex != nil {
			r.Post("/vectors/store", h.IndexStores)
		}
		if h.Embeddings != nil {
			r.Get("/vectors/brand/{brandID}", h.BrandVector)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
	return r
}
