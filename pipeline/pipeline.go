package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/venuerec/core"
)

// Observer 在每个 Node 执行后回调，用于打点与日志。
type Observer func(node Node, elapsed time.Duration, in, out int, err error)

// Pipeline 把推荐逻辑拆成可组合的 Node 链，按顺序执行。
type Pipeline struct {
	Nodes    []Node
	Observer Observer
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		if p.Observer != nil {
			p.Observer(node, time.Since(start), len(cur), len(next), err)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
