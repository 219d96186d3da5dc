package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/goccy/go-json"

	"github.com/rushteam/venuerec/core"
)

// EmbeddingStore 向量表 {table}({key}, embedding vector(384), updated_at)。
// 品牌向量在 brand_embedding，门店向量在 store_embedding。
// 向量以 pgvector 文本格式 [1,2,3] 读写。
type EmbeddingStore struct {
	client    *Client
	dimension int
	table     string
	key       string
}

// NewEmbeddingStore 品牌向量表 brand_embedding。
func NewEmbeddingStore(c *Client, dimension int) *EmbeddingStore {
	return newEmbeddingStore(c, dimension, "brand_embedding", "brand_id")
}

// NewStoreEmbeddingStore 门店向量表 store_embedding。
func NewStoreEmbeddingStore(c *Client, dimension int) *EmbeddingStore {
	return newEmbeddingStore(c, dimension, "store_embedding", "store_id")
}

func newEmbeddingStore(c *Client, dimension int, table, key string) *EmbeddingStore {
	if dimension <= 0 {
		dimension = core.EmbeddingDim
	}
	return &EmbeddingStore{client: c, dimension: dimension, table: table, key: key}
}

type embeddingRow struct {
	ItemID string `db:"item_id"`
	Vector string `db:"vector"`
}

// AllEmbeddings 返回全部向量，按主键排序。
func (s *EmbeddingStore) AllEmbeddings(ctx context.Context) ([]core.Embedding, error) {
	ds := s.client.qb.From(s.table).
		Select(text(s.key).As("item_id"), text("embedding").As("vector")).
		Where(goqu.C("embedding").IsNotNull()).
		Order(goqu.C(s.key).Asc())

	var rows []embeddingRow
	if err := s.client.selectInto(ctx, &rows, s.table, ds); err != nil {
		return nil, err
	}
	out := make([]core.Embedding, 0, len(rows))
	for _, r := range rows {
		vec, err := parseVector(r.Vector)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", s.key, r.ItemID, err)
		}
		out = append(out, core.Embedding{ItemID: r.ItemID, Vector: vec})
	}
	return out, nil
}

// ByID 读取单个向量；没有这一行或向量为空时 ok 为 false。
func (s *EmbeddingStore) ByID(ctx context.Context, itemID string) ([]float64, bool, error) {
	ds := s.client.qb.From(s.table).
		Select(text(s.key).As("item_id"), text("embedding").As("vector")).
		Where(goqu.C(s.key).Eq(itemID), goqu.C("embedding").IsNotNull()).
		Limit(1)

	var rows []embeddingRow
	if err := s.client.selectInto(ctx, &rows, s.table, ds); err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	vec, err := parseVector(rows[0].Vector)
	if err != nil {
		return nil, false, fmt.Errorf("%s %s: %w", s.key, itemID, err)
	}
	return vec, true, nil
}

// Upsert 写入或覆盖一条向量。
func (s *EmbeddingStore) Upsert(ctx context.Context, e core.Embedding) error {
	if e.ItemID == "" {
		return core.InvalidInput("embedding item id is empty")
	}
	if len(e.Vector) != s.dimension {
		return core.InvalidInput("embedding for %s has dimension %d, want %d", e.ItemID, len(e.Vector), s.dimension)
	}

	query, args, err := s.client.qb.Insert(s.table).
		Rows(goqu.Record{
			s.key:        e.ItemID,
			"embedding":  goqu.L("?::vector", vectorToString(e.Vector)),
			"updated_at": goqu.L("NOW()"),
		}).
		OnConflict(goqu.DoUpdate(s.key, goqu.Record{
			"embedding":  goqu.L("EXCLUDED.embedding"),
			"updated_at": goqu.L("EXCLUDED.updated_at"),
		})).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build embedding upsert: %w", err)
	}
	if _, err := s.client.db.ExecContext(ctx, query, args...); err != nil {
		return core.Unavailable(core.ModuleStore, fmt.Errorf("upsert embedding %s: %w", e.ItemID, err))
	}
	return nil
}

func vectorToString(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func parseVector(s string) ([]float64, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var out []float64
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("parse vector: %w", err)
	}
	return out, nil
}
