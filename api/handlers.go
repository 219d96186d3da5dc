package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/rushteam/venuerec/recommend"
)

// recommendQuery GET /api/recommend/hybrid 的查询参数。
type recommendQuery struct {
	UserID   string  `validate:"required,max=128"`
	Lat      float64 `validate:"gte=-90,lte=90"`
	Lng      float64 `validate:"gte=-180,lte=180"`
	RadiusKm float64 `validate:"gte=0,lte=100"`
	TopK     int     `validate:"gte=0,lte=100"`
}

// RecommendHybrid GET /api/recommend/hybrid?user_id=&lat=&lng=&radius_km=&top_k=
func (h *Handler) RecommendHybrid(w http.ResponseWriter, r *http.Request) {
	q, err := parseRecommendQuery(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := h.validate.Struct(q); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err))
		return
	}

	res, err := h.Recommender.RecommendForUser(r.Context(), recommend.Request{
		UserID:   q.UserID,
		Lat:      q.Lat,
		Lng:      q.Lng,
		RadiusKm: q.RadiusKm,
		TopK:     q.TopK,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondOK(w, r, res, res.CacheHit)
}

func parseRecommendQuery(r *http.Request) (*recommendQuery, error) {
	v := r.URL.Query()
	q := &recommendQuery{UserID: strings.TrimSpace(v.Get("user_id"))}

	var err error
	if q.Lat, err = requiredFloat(v.Get("lat"), "lat"); err != nil {
		return nil, err
	}
	if q.Lng, err = requiredFloat(v.Get("lng"), "lng"); err != nil {
		return nil, err
	}
	if s := v.Get("radius_km"); s != "" {
		if q.RadiusKm, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("radius_km: invalid number %q", s)
		}
	}
	if s := v.Get("top_k"); s != "" {
		if q.TopK, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("top_k: invalid integer %q", s)
		}
	}
	return q, nil
}

func requiredFloat(s, name string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", name, s)
	}
	return f, nil
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// Train POST /api/admin/train，同步训练一次并返回新状态。
// 客户端断开不会中断训练。
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	if h.Trainer == nil {
		respondError(w, r, http.StatusNotImplemented, "NOT_CONFIGURED", "trainer not configured")
		return
	}
	if _, err := h.Trainer.Train(context.WithoutCancel(r.Context())); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondOK(w, r, h.Trainer.Status(), false)
}

// ModelStatus GET /api/admin/model
func (h *Handler) ModelStatus(w http.ResponseWriter, r *http.Request) {
	if h.Trainer == nil {
		respondError(w, r, http.StatusNotImplemented, "NOT_CONFIGURED", "trainer not configured")
		return
	}
	respondOK(w, r, h.Trainer.Status(), false)
}

// IndexBrands POST /api/vectors/brand
func (h *Handler) IndexBrands(w http.ResponseWriter, r *http.Request) {
	h.runIndexer(w, r, h.Indexer, "brand")
}

// IndexStores POST /api/vectors/store
func (h *Handler) IndexStores(w http.ResponseWriter, r *http.Request) {
	h.runIndexer(w, r, h.StoreIndex, "store")
}

func (h *Handler) runIndexer(w http.ResponseWriter, r *http.Request, x Indexer, kind string) {
	start := time.Now()
	res, err := x.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().
		Str("kind", kind).
		Int("indexed", res.Indexed).
		Int("failed", len(res.Failed)).
		Dur("duration", time.Since(start)).
		Msg("vectors refreshed")
	respondOK(w, r, res, false)
}

type brandVector struct {
	BrandID   string    `json:"brand_id"`
	Dimension int       `json:"dimension"`
	Vector    []float64 `json:"vector"`
}

// BrandVector GET /api/vectors/brand/{brandID}
func (h *Handler) BrandVector(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "brandID")
	vec, ok, err := h.Embeddings.ByID(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if !ok {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "no vector for brand "+id)
		return
	}
	respondOK(w, r, brandVector{BrandID: id, Dimension: len(vec), Vector: vec}, false)
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Model  *modelHealth      `json:"model,omitempty"`
}

type modelHealth struct {
	Trained    bool  `json:"trained"`
	Generation int64 `json:"generation"`
}

// Health GET /health。任一依赖探活失败返回 503；模型未训练不算失败（冷启动可服务）。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	hs := healthStatus{Status: "ok"}
	if len(h.Checks) > 0 {
		hs.Checks = make(map[string]string, len(h.Checks))
	}
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			hs.Checks[name] = err.Error()
			hs.Status = "degraded"
			continue
		}
		hs.Checks[name] = "ok"
	}
	if h.Trainer != nil {
		st := h.Trainer.Status()
		hs.Model = &modelHealth{Trained: st.Trained, Generation: st.Generation}
	}

	status := http.StatusOK
	if hs.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, r, status, &Response{Status: hs.Status, Data: hs})
}
