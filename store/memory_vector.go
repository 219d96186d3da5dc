package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rushteam/venuerec/core"
)

// MemoryEmbeddingStore 是内存实现的品牌向量存储，用于测试/开发。
type MemoryEmbeddingStore struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[string][]float64
}

// NewMemoryEmbeddingStore dimension<=0 时不校验维度。
func NewMemoryEmbeddingStore(dimension int) *MemoryEmbeddingStore {
	return &MemoryEmbeddingStore{
		dimension: dimension,
		vectors:   make(map[string][]float64),
	}
}

// AllEmbeddings 按 ItemID 升序返回全部向量的副本。
func (m *MemoryEmbeddingStore) AllEmbeddings(_ context.Context) ([]core.Embedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.Embedding, 0, len(m.vectors))
	for id, v := range m.vectors {
		cp := make([]float64, len(v))
		copy(cp, v)
		out = append(out, core.Embedding{ItemID: id, Vector: cp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

func (m *MemoryEmbeddingStore) ByID(_ context.Context, itemID string) ([]float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vectors[itemID]
	if !ok {
		return nil, false, nil
	}
	cp := make([]float64, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m *MemoryEmbeddingStore) Upsert(_ context.Context, e core.Embedding) error {
	if e.ItemID == "" {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "embedding item id is empty")
	}
	if m.dimension > 0 && len(e.Vector) != m.dimension {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "vector dimension mismatch")
	}
	cp := make([]float64, len(e.Vector))
	copy(cp, e.Vector)

	m.mu.Lock()
	m.vectors[e.ItemID] = cp
	m.mu.Unlock()
	return nil
}

// Delete 删除一个品牌向量。
func (m *MemoryEmbeddingStore) Delete(_ context.Context, itemID string) error {
	m.mu.Lock()
	delete(m.vectors, itemID)
	m.mu.Unlock()
	return nil
}
