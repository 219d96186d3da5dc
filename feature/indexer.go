package feature

import (
	"context"
	"fmt"

	"github.com/rushteam/venuerec/core"
)

// BrandText 品牌向量的输入文本："名称 . 描述. 类别"。
func BrandText(b core.Brand) string {
	return fmt.Sprintf("%s . %s. %s", b.Name, b.Description, b.Category)
}

// StoreText 门店向量的输入文本，取所属品牌："名称. 描述. 类别"。
func StoreText(b core.Brand) string {
	return fmt.Sprintf("%s. %s. %s", b.Name, b.Description, b.Category)
}

// Document 一条待编码的文本，ID 为写入 EmbeddingStore 的主键。
type Document struct {
	ID   string
	Text string
}

// DocumentSource 提供一批待编码的文本。
type DocumentSource interface {
	Documents(ctx context.Context) ([]Document, error)
}

// BrandDocuments 品牌目录 -> 品牌向量文本。
type BrandDocuments struct {
	Catalog core.BrandCatalog
}

func (d BrandDocuments) Documents(ctx context.Context) ([]Document, error) {
	brands, err := d.Catalog.Brands(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(brands))
	for _, b := range brands {
		out = append(out, Document{ID: b.ID, Text: BrandText(b)})
	}
	return out, nil
}

// StoreDocuments 门店目录 -> 门店向量文本。
type StoreDocuments struct {
	Catalog core.StoreCatalog
}

func (d StoreDocuments) Documents(ctx context.Context) ([]Document, error) {
	stores, err := d.Catalog.StoreBrands(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(stores))
	for _, s := range stores {
		out = append(out, Document{ID: s.StoreID, Text: StoreText(s.Brand)})
	}
	return out, nil
}

// EmbeddingIndexer 为一批文本生成内容向量并写回 EmbeddingStore。
// 向量的生成与推荐请求相互独立，写入后下一次请求即可见。
type EmbeddingIndexer struct {
	Source  DocumentSource
	Encoder core.TextEncoder
	Store   core.EmbeddingStore
}

// IndexResult 一次索引的统计。
type IndexResult struct {
	Indexed int      `json:"indexed"`
	Failed  []string `json:"failed,omitempty"`
}

// Run 逐条编码并写入。单条编码失败时跳过并记录，目录或存储不可用时整体失败。
func (x *EmbeddingIndexer) Run(ctx context.Context) (*IndexResult, error) {
	docs, err := x.Source.Documents(ctx)
	if err != nil {
		return nil, core.Unavailable(core.ModuleVector, err)
	}

	res := &IndexResult{}
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		vec, err := x.Encoder.Encode(ctx, d.Text)
		if err != nil {
			res.Failed = append(res.Failed, d.ID)
			continue
		}
		if err := x.Store.Upsert(ctx, core.Embedding{ItemID: d.ID, Vector: vec}); err != nil {
			return res, fmt.Errorf("upsert %s: %w", d.ID, err)
		}
		res.Indexed++
	}
	return res, nil
}
