package core

import "context"

// ProfileTexts 用户画像的五类文本来源。
type ProfileTexts struct {
	Categories     []string // 偏好类别名
	VisitedStores  []string // 消费过的门店名
	BookmarkBrands []string // 收藏品牌的描述
	ClickedStores  []string // 点击过的门店名
	SearchKeywords []string // 搜索关键词
}

// Parts 按固定顺序展开全部非空片段。
func (p ProfileTexts) Parts() []string {
	var out []string
	for _, group := range [][]string{p.Categories, p.VisitedStores, p.BookmarkBrands, p.ClickedStores, p.SearchKeywords} {
		for _, s := range group {
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// ProfileSource 读取用户画像文本。
type ProfileSource interface {
	ProfileTexts(ctx context.Context, userID string) (*ProfileTexts, error)
}
