package filter

import (
	"context"

	"github.com/rushteam/venuerec/core"
)

// BlocklistFilter 过滤掉被下架/屏蔽的品牌。
type BlocklistFilter struct {
	ids map[string]struct{}
}

func NewBlocklistFilter(brandIDs []string) *BlocklistFilter {
	ids := make(map[string]struct{}, len(brandIDs))
	for _, id := range brandIDs {
		ids[id] = struct{}{}
	}
	return &BlocklistFilter{ids: ids}
}

func (f *BlocklistFilter) Name() string { return "filter.blocklist" }

func (f *BlocklistFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	_, blocked := f.ids[item.ID]
	return blocked, nil
}
