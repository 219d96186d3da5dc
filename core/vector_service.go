package core

import "context"

// VectorService 是向量检索服务的领域接口。
//
// 内容相似度打分只依赖这个接口：默认实现 vector.ScanService 每次请求全量线性扫描，
// 换成带索引的 ANN 实现时调用方无需改动。
type VectorService interface {
	Search(ctx context.Context, req *VectorSearchRequest) (*VectorSearchResult, error)
	Close() error
}

// VectorSearchRequest Collection 目前只有 "brand"；TopK <= 0 返回全部；Metric 默认 cosine。
type VectorSearchRequest struct {
	Collection string
	Vector     []float64
	TopK       int
	Metric     string
}

type VectorSearchItem struct {
	ID    string
	Score float64
}

// VectorSearchResult Items 按分数降序，同分按 ID 升序。
type VectorSearchResult struct {
	Items []VectorSearchItem
}

// ValidateVectorMetric 空字符串视为 cosine。
func ValidateVectorMetric(metric string) bool {
	switch MetricType(metric) {
	case "", MetricCosine, MetricInnerProduct:
		return true
	default:
		return false
	}
}

type MetricType string

const (
	MetricCosine       MetricType = "cosine"
	MetricInnerProduct MetricType = "inner_product"
)
