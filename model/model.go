package model

import "context"

// Factorizer 是协同过滤训练阶段的最小抽象：输入交互矩阵，输出用户/物品隐向量。
// 训练是纯函数，不持有任何已发布状态；发布由 recall.ALSRecall 负责。
type Factorizer interface {
	Name() string
	Fit(ctx context.Context, m *InteractionMatrix) (*Factors, error)
}

// Factors 一次训练得到的隐向量矩阵。
// UserFactors[u] 与 ItemFactors[i] 的下标即 IDIndex 中的稠密编码。
type Factors struct {
	NumFactors  int
	UserFactors [][]float64
	ItemFactors [][]float64
}

// Dot 返回用户 u 与物品 i 的偏好分。
func (f *Factors) Dot(u, i int) float64 {
	return dot(f.UserFactors[u], f.ItemFactors[i])
}

func dot(a, b []float64) float64 {
	var s float64
	for k := range a {
		s += a[k] * b[k]
	}
	return s
}
