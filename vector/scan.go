package vector

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rushteam/venuerec/core"
)

// ScanService 是线性扫描实现的 core.VectorService。
//
// 每次 Search 都从 EmbeddingStore 重新读取全部向量，不做进程内缓存，
// 品牌向量更新后下一次请求立即可见。复杂度 O(N·D)。
type ScanService struct {
	Store  core.EmbeddingStore
	Logger zerolog.Logger
}

func NewScanService(store core.EmbeddingStore, logger zerolog.Logger) *ScanService {
	return &ScanService{
		Store:  store,
		Logger: logger.With().Str("component", "vector.scan").Logger(),
	}
}

func (s *ScanService) Name() string { return "vector.scan" }

func (s *ScanService) Search(ctx context.Context, req *core.VectorSearchRequest) (*core.VectorSearchResult, error) {
	if req == nil {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "vector search request is nil")
	}
	if !core.ValidateVectorMetric(req.Metric) {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeNotSupported, "unsupported metric: "+req.Metric)
	}

	embeddings, err := s.Store.AllEmbeddings(ctx)
	if err != nil {
		return nil, core.Unavailable(core.ModuleVector, err)
	}

	items := make([]core.VectorSearchItem, 0, len(embeddings))
	mismatched := 0
	for _, e := range embeddings {
		if len(e.Vector) != len(req.Vector) {
			mismatched++
		}
		items = append(items, core.VectorSearchItem{ID: e.ItemID, Score: score(req.Metric, req.Vector, e.Vector)})
	}
	if mismatched > 0 {
		s.Logger.Warn().
			Int("mismatched", mismatched).
			Int("query_dim", len(req.Vector)).
			Msg("embedding dimension mismatch, scored as 0")
	}

	return &core.VectorSearchResult{Items: topItems(items, req.TopK)}, nil
}

func (s *ScanService) Close() error { return nil }

func score(metric string, q, v []float64) float64 {
	if core.MetricType(metric) == core.MetricInnerProduct {
		return InnerProduct(q, v)
	}
	return Cosine(q, v)
}

// topItems 分数降序、ID 升序，取前 k 个；k<=0 返回全部。
func topItems(items []core.VectorSearchItem, k int) []core.VectorSearchItem {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	if k > 0 && len(items) > k {
		items = items[:k]
	}
	return items
}
