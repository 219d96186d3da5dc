package core

import "context"

// EmbeddingDim 是画像向量与品牌向量的维度（MiniLM 系列句向量）。
const EmbeddingDim = 384

// Embedding 一个物品的内容向量。
type Embedding struct {
	ItemID string
	Vector []float64
}

// EmbeddingStore 品牌向量的读写接口。
type EmbeddingStore interface {
	// AllEmbeddings 返回全部品牌向量
	AllEmbeddings(ctx context.Context) ([]Embedding, error)

	// ByID 读取单个品牌向量，不存在时 ok 为 false
	ByID(ctx context.Context, itemID string) (vec []float64, ok bool, err error)

	// Upsert 写入或覆盖一个品牌向量
	Upsert(ctx context.Context, e Embedding) error
}

// TextEncoder 将文本编码为定长向量。
type TextEncoder interface {
	Encode(ctx context.Context, text string) ([]float64, error)
}
