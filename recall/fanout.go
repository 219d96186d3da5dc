package recall

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/pipeline"
	"github.com/rushteam/venuerec/pkg/utils"
)

// Fanout 是一个 Recall Node：并发执行多个召回源，并合并结果。
// 支持超时、限流、优先级合并策略。
//
// 同一物品出现在多路召回中时，各路写入的 Features 会合并到一个 Item 上，
// 下游的混合打分据此读取每一路信号。
type Fanout struct {
	Sources       []Source
	Dedup         bool
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy string        // 合并策略：first / union / priority（优先级按 Sources 顺序）

	// FailFast 为 true 时任一召回源出错即中断整个请求（上游不可用需要传给调用方）；
	// 为 false 时出错的召回源按空结果处理
	FailFast bool

	// OnError 召回源出错时回调（可选，用于日志）
	OnError func(source string, err error)
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	// 每个召回源写自己的槽位，合并顺序与 Sources 顺序一致，与完成先后无关
	results := make([][]*core.Item, len(n.Sources))
	eg, egCtx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		i, src := i, src
		eg.Go(func() error {
			recallCtx := egCtx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(egCtx, n.Timeout)
				defer cancel()
			}

			items, err := src.Recall(recallCtx, rctx)
			if err != nil {
				if n.OnError != nil {
					n.OnError(src.Name(), err)
				}
				if n.FailFast {
					return err
				}
				return nil
			}

			// 记录召回来源 label，方便 explain / 观测
			for _, it := range items {
				it.PutLabel("recall_source", utils.Label{Value: src.Name(), Source: "recall"})
				it.PutLabel("recall_priority", utils.Label{Value: strconv.Itoa(i), Source: "recall"})
			}
			results[i] = items
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []*core.Item
	for _, items := range results {
		all = append(all, items...)
	}

	switch n.MergeStrategy {
	case "priority":
		return n.mergeByPriority(all), nil
	case "union":
		return all, nil
	default: // "first" 或默认
		return n.mergeFirst(all), nil
	}
}

// mergeFirst 按 ID 去重，保留第一个出现的，并合并后来者的 Features 与 Labels。
func (n *Fanout) mergeFirst(all []*core.Item) []*core.Item {
	if !n.Dedup {
		return all
	}
	seen := make(map[string]*core.Item, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		if old, ok := seen[it.ID]; ok {
			mergeInto(old, it)
			continue
		}
		seen[it.ID] = it
		out = append(out, it)
	}
	return out
}

// mergeByPriority 相同 ID 时以优先级更高（索引更小）的为主体，合并另一方的信号。
func (n *Fanout) mergeByPriority(all []*core.Item) []*core.Item {
	if !n.Dedup {
		return all
	}
	seen := make(map[string]int, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		idx, exists := seen[it.ID]
		if !exists {
			seen[it.ID] = len(out)
			out = append(out, it)
			continue
		}
		old := out[idx]
		if priority(it) < priority(old) {
			mergeInto(it, old)
			out[idx] = it
		} else {
			mergeInto(old, it)
		}
	}
	return out
}

func priority(it *core.Item) int {
	if lbl, ok := it.Labels["recall_priority"]; ok {
		if p, err := strconv.Atoi(lbl.First()); err == nil {
			return p
		}
	}
	return 999
}

func mergeInto(dst, src *core.Item) {
	for k, v := range src.Features {
		if _, ok := dst.Features[k]; !ok {
			dst.SetFeature(k, v)
		}
	}
	for k, v := range src.Labels {
		dst.PutLabel(k, v)
	}
}
