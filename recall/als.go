package recall

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/model"
	"github.com/rushteam/venuerec/pkg/utils"
)

// FeatureALS 是 ALS 分数在 Item.Features 中的 key。
const FeatureALS = "als"

// 请求级 label：本次打分使用的模型代；用户不在模型中时标记冷启动。
const (
	LabelGeneration = "als_generation"
	LabelColdStart  = "cold_start"
)

// Generation 一次训练发布的不可变快照。
// 编码索引与隐向量总是一起发布，读方拿到的永远是同一代的组合。
type Generation struct {
	Number       int64
	Users        *model.IDIndex
	Items        *model.IDIndex
	Factors      *model.Factors
	TrainedAt    time.Time
	Interactions int
}

// ALSRecall 是基于隐式 ALS 的协同过滤召回源，同时持有已发布的模型代。
//
// 状态：未训练 -> 已训练(第 N 代)。Train 在旁路训练，成功后一次原子替换发布第 N+1 代；
// 训练失败时保留上一代。打分只读当前快照，不加锁。
//
// 冷启动（未训练或用户不在当前代中）返回空结果，不是错误。
type ALSRecall struct {
	Factorizer model.Factorizer

	// TopK 固定候选数；<=0 时取 rctx.TopK × CandidateMultiplier
	TopK                int
	CandidateMultiplier int

	current atomic.Pointer[Generation]
	trainMu sync.Mutex
}

func NewALSRecall(f model.Factorizer) *ALSRecall {
	return &ALSRecall{Factorizer: f}
}

func (r *ALSRecall) Name() string {
	return "recall.als"
}

// Generation 返回当前发布的模型代，未训练时为 nil。
func (r *ALSRecall) Generation() *Generation {
	return r.current.Load()
}

// Current 与 Generation 相同，未训练时返回 core.ErrModelNotTrained。
func (r *ALSRecall) Current() (*Generation, error) {
	gen := r.current.Load()
	if gen == nil {
		return nil, core.ErrModelNotTrained
	}
	return gen, nil
}

// Trained 是否已经发布过至少一代模型。
func (r *ALSRecall) Trained() bool {
	return r.current.Load() != nil
}

// Train 用一次聚合结果训练并发布新一代。
// 并发调用之间串行；读方全程不受影响。
func (r *ALSRecall) Train(ctx context.Context, agg *model.Aggregation) (*Generation, error) {
	if agg == nil || agg.Matrix.Empty() {
		return nil, model.ErrEmptyMatrix
	}

	r.trainMu.Lock()
	defer r.trainMu.Unlock()

	factors, err := r.Factorizer.Fit(ctx, agg.Matrix)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", r.Factorizer.Name(), err)
	}

	var next int64 = 1
	if prev := r.current.Load(); prev != nil {
		next = prev.Number + 1
	}
	gen := &Generation{
		Number:       next,
		Users:        agg.Users,
		Items:        agg.Items,
		Factors:      factors,
		TrainedAt:    time.Now(),
		Interactions: len(agg.Matrix.Entries),
	}
	r.current.Store(gen)
	return gen, nil
}

// Score 返回用户对全部物品的偏好分中最高的 topK 个。
// 已交互过的物品不排除。未训练或未知用户返回空 map。
func (r *ALSRecall) Score(userID string, topK int) core.ScoreMap {
	gen := r.current.Load()
	scores := gen.score(userID, topK)
	out := make(core.ScoreMap, len(scores))
	for _, s := range scores {
		out[s.ItemID] = s.Score
	}
	return out
}

func (g *Generation) score(userID string, topK int) []core.CandidateScore {
	if g == nil {
		return nil
	}
	u, ok := g.Users.Code(userID)
	if !ok {
		return nil
	}
	scores := make([]core.CandidateScore, g.Items.Len())
	for i := range scores {
		scores[i] = core.CandidateScore{ItemID: g.Items.ID(i), Score: g.Factors.Dot(u, i)}
	}
	return TopScores(scores, topK)
}

func (r *ALSRecall) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if rctx == nil || rctx.UserID == "" {
		return nil, nil
	}
	gen := r.current.Load()
	if gen != nil {
		rctx.PutLabel(LabelGeneration, utils.Label{Value: strconv.FormatInt(gen.Number, 10), Source: "recall"})
	}
	scores := gen.score(rctx.UserID, candidateCount(r.TopK, r.CandidateMultiplier, rctx))
	if len(scores) == 0 {
		rctx.PutLabel(LabelColdStart, utils.Label{Value: "als", Source: "recall"})
		return nil, nil
	}

	out := toItems(scores, FeatureALS)
	for _, it := range out {
		it.PutLabel(LabelGeneration, utils.Label{Value: strconv.FormatInt(gen.Number, 10), Source: "recall"})
	}
	return out, nil
}
