package core

import "github.com/rushteam/venuerec/pkg/utils"

// RecommendContext 承载一次推荐请求的用户、位置和参数，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID string

	// ProfileVector 是调用方用 TextEncoder 编码后的画像向量
	ProfileVector []float64

	// 请求位置与半径（公里）
	Lat      float64
	Lng      float64
	RadiusKm float64

	// TopK 最终返回的门店数
	TopK int

	// Labels 是用户级标签，例如 cold_start
	Labels map[string]utils.Label

	// Params 其他请求级参数
	Params map[string]any
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}

// RadiusMeters 返回半径（米）。
func (rctx *RecommendContext) RadiusMeters() float64 {
	return rctx.RadiusKm * 1000
}

// Validate 检查 TopK 与半径。
func (rctx *RecommendContext) Validate() error {
	if rctx.UserID == "" {
		return InvalidInput("user id is required")
	}
	if rctx.TopK <= 0 {
		return InvalidInput("topK must be > 0, got %d", rctx.TopK)
	}
	if rctx.RadiusKm <= 0 {
		return InvalidInput("radius must be > 0, got %g", rctx.RadiusKm)
	}
	if rctx.Lat < -90 || rctx.Lat > 90 || rctx.Lng < -180 || rctx.Lng > 180 {
		return InvalidInput("coordinates out of range: %g,%g", rctx.Lat, rctx.Lng)
	}
	return nil
}
