package core

import "context"

// Brand 品牌的文本信息，用于生成品牌内容向量。
type Brand struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Category    string `db:"category"`
}

// BrandCatalog 列出需要生成向量的品牌（描述非空）。
type BrandCatalog interface {
	Brands(ctx context.Context) ([]Brand, error)
}

// StoreBrand 一家门店及其所属品牌，门店向量由品牌文本生成。
type StoreBrand struct {
	StoreID string `db:"store_id"`
	Brand
}

// StoreCatalog 列出所属品牌描述非空的门店。
type StoreCatalog interface {
	StoreBrands(ctx context.Context) ([]StoreBrand, error)
}
