package postgres

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/rushteam/venuerec/core"
)

// ProfileSource 从业务表收集用户画像的五类文本。
type ProfileSource struct {
	client *Client
}

func NewProfileSource(c *Client) *ProfileSource {
	return &ProfileSource{client: c}
}

// ProfileTexts 依次读取偏好类别、消费门店、收藏品牌描述、点击门店、搜索词。
// 任一查询失败即返回错误，不返回部分画像。
func (p *ProfileSource) ProfileTexts(ctx context.Context, userID string) (*core.ProfileTexts, error) {
	out := &core.ProfileTexts{}
	queries := []struct {
		what string
		dest *[]string
		ds   *goqu.SelectDataset
	}{
		{"user categories", &out.Categories, p.joined("user_category", "category", "category_id", "name", userID)},
		{"usage history", &out.VisitedStores, p.joined("usage_history", "store", "store_id", "name", userID)},
		{"bookmarks", &out.BookmarkBrands, p.joined("bookmark", "brand", "brand_id", "description", userID)},
		{"store clicks", &out.ClickedStores, p.joined("store_click_log", "store", "store_id", "name", userID)},
		{"search keywords", &out.SearchKeywords, p.client.qb.From("search_log").
			Select(goqu.C("keyword").As("text")).
			Where(goqu.L("user_id::text = ?", userID), goqu.C("keyword").IsNotNull()).
			Order(goqu.C("id").Asc())},
	}
	for _, q := range queries {
		if err := p.client.selectInto(ctx, q.dest, q.what, q.ds); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// joined 构建 "SELECT t.col FROM log l JOIN t ON l.fk = t.id WHERE l.user_id = ?"。
func (p *ProfileSource) joined(logTable, target, fk, col, userID string) *goqu.SelectDataset {
	return p.client.qb.From(goqu.T(logTable).As("l")).
		Join(goqu.T(target).As("t"), goqu.On(goqu.I("l."+fk).Eq(goqu.I("t.id")))).
		Select(goqu.I("t."+col).As("text")).
		Where(goqu.L("l.user_id::text = ?", userID), goqu.I("t."+col).IsNotNull()).
		Order(goqu.I("l.id").Asc())
}

// BrandCatalog 列出描述非空的品牌及其类别名。
type BrandCatalog struct {
	client *Client
}

func NewBrandCatalog(c *Client) *BrandCatalog {
	return &BrandCatalog{client: c}
}

func (b *BrandCatalog) Brands(ctx context.Context) ([]core.Brand, error) {
	ds := b.client.qb.From(goqu.T("brand").As("b")).
		LeftJoin(goqu.T("category").As("c"), goqu.On(goqu.I("b.category_id").Eq(goqu.I("c.id")))).
		Select(
			text("b.id").As("id"),
			goqu.COALESCE(goqu.I("b.name"), "").As("name"),
			goqu.I("b.description").As("description"),
			goqu.COALESCE(goqu.I("c.name"), "").As("category"),
		).
		Where(goqu.I("b.description").IsNotNull()).
		Order(goqu.I("b.id").Asc())

	var out []core.Brand
	if err := b.client.selectInto(ctx, &out, "brands", ds); err != nil {
		return nil, err
	}
	return out, nil
}

// StoreCatalog 列出所属品牌描述非空的门店，附带品牌文本。
type StoreCatalog struct {
	client *Client
}

func NewStoreCatalog(c *Client) *StoreCatalog {
	return &StoreCatalog{client: c}
}

func (sc *StoreCatalog) StoreBrands(ctx context.Context) ([]core.StoreBrand, error) {
	ds := sc.client.qb.From(goqu.T("store").As("s")).
		InnerJoin(goqu.T("brand").As("b"), goqu.On(goqu.I("s.brand_id").Eq(goqu.I("b.id")))).
		LeftJoin(goqu.T("category").As("c"), goqu.On(goqu.I("b.category_id").Eq(goqu.I("c.id")))).
		Select(
			text("s.id").As("store_id"),
			text("b.id").As("id"),
			goqu.COALESCE(goqu.I("b.name"), "").As("name"),
			goqu.I("b.description").As("description"),
			goqu.COALESCE(goqu.I("c.name"), "").As("category"),
		).
		Where(goqu.I("b.description").IsNotNull()).
		Order(goqu.I("s.id").Asc())

	var out []core.StoreBrand
	if err := sc.client.selectInto(ctx, &out, "stores", ds); err != nil {
		return nil, err
	}
	return out, nil
}
