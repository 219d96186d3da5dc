package vector

import "math"

// Cosine 返回 u、v 的余弦相似度。
// 任一向量范数为 0 或维度不一致时返回 0，结果不会是 NaN。
func Cosine(u, v []float64) float64 {
	if len(u) != len(v) || len(u) == 0 {
		return 0
	}
	var dot, nu, nv float64
	for i := range u {
		dot += u[i] * v[i]
		nu += u[i] * u[i]
		nv += v[i] * v[i]
	}
	if nu == 0 || nv == 0 {
		return 0
	}
	s := dot / (math.Sqrt(nu) * math.Sqrt(nv))
	if math.IsNaN(s) {
		return 0
	}
	return s
}

// InnerProduct 返回 u、v 的内积，维度不一致时返回 0。
func InnerProduct(u, v []float64) float64 {
	if len(u) != len(v) {
		return 0
	}
	var dot float64
	for i := range u {
		dot += u[i] * v[i]
	}
	return dot
}
