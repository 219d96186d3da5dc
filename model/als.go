package model

import (
	"context"
	"errors"
	"math"

	"golang.org/x/sync/errgroup"
)

// ALS 隐式反馈交替最小二乘（Hu, Koren, Volinsky 2008）。
//
// 目标函数：
//
//	sum_{u,i} c_ui * (p_ui - x_u'y_i)^2 + lambda * (||x_u||^2 + ||y_i||^2)
//
// 其中 p_ui = 1（有交互）/ 0（无交互），c_ui = 1 + Alpha * count_ui。
// 初始化是确定性的，同样的输入得到同样的隐向量。
type ALS struct {
	Factors        int
	Regularization float64
	Iterations     int
	Alpha          float64
	Workers        int
}

// NewALS 返回默认超参数的 ALS：50 维、正则 0.01、20 轮。
func NewALS() *ALS {
	return &ALS{
		Factors:        50,
		Regularization: 0.01,
		Iterations:     20,
		Alpha:          1,
		Workers:        4,
	}
}

var ErrEmptyMatrix = errors.New("als: empty interaction matrix")

func (a *ALS) Name() string { return "als" }

// Fit 训练并返回新的隐向量矩阵，不修改接收者。
func (a *ALS) Fit(ctx context.Context, m *InteractionMatrix) (*Factors, error) {
	if m.Empty() {
		return nil, ErrEmptyMatrix
	}
	if a.Factors <= 0 || a.Iterations <= 0 || a.Regularization < 0 {
		return nil, errors.New("als: invalid hyperparameters")
	}
	workers := a.Workers
	if workers <= 0 {
		workers = 1
	}
	alpha := a.Alpha
	if alpha <= 0 {
		alpha = 1
	}

	nf := a.Factors
	userItems := make([][]conf, m.Rows)
	itemUsers := make([][]conf, m.Cols)
	for _, e := range m.Entries {
		c := 1 + alpha*e.Count
		userItems[e.User] = append(userItems[e.User], conf{idx: e.Item, c: c})
		itemUsers[e.Item] = append(itemUsers[e.Item], conf{idx: e.User, c: c})
	}

	X := initFactors(m.Rows, nf)
	Y := initFactors(m.Cols, nf)

	for iter := 0; iter < a.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := solveSide(ctx, X, Y, userItems, nf, a.Regularization, workers); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := solveSide(ctx, Y, X, itemUsers, nf, a.Regularization, workers); err != nil {
			return nil, err
		}
	}

	return &Factors{NumFactors: nf, UserFactors: X, ItemFactors: Y}, nil
}

type conf struct {
	idx int
	c   float64
}

func initFactors(n, nf int) [][]float64 {
	out := make([][]float64, n)
	for r := 0; r < n; r++ {
		out[r] = make([]float64, nf)
		for f := 0; f < nf; f++ {
			out[r][f] = 0.1 * (float64((r*nf+f)%1000)/1000.0 - 0.5)
		}
	}
	return out
}

// solveSide 固定 fixed，逐行求解 target。
func solveSide(ctx context.Context, target, fixed [][]float64, rows [][]conf, nf int, lambda float64, workers int) error {
	gram := gramian(fixed, nf)

	n := len(target)
	chunk := (n + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < n; start += chunk {
		start := start
		end := min(start+chunk, n)
		g.Go(func() error {
			for r := start; r < end; r++ {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				target[r] = solveRow(rows[r], fixed, gram, nf, lambda)
			}
			return nil
		})
	}
	return g.Wait()
}

// gramian 计算 M'M。
func gramian(M [][]float64, nf int) [][]float64 {
	G := make([][]float64, nf)
	for f := range G {
		G[f] = make([]float64, nf)
	}
	for _, v := range M {
		for f1 := 0; f1 < nf; f1++ {
			for f2 := f1; f2 < nf; f2++ {
				G[f1][f2] += v[f1] * v[f2]
			}
		}
	}
	for f1 := 0; f1 < nf; f1++ {
		for f2 := 0; f2 < f1; f2++ {
			G[f1][f2] = G[f2][f1]
		}
	}
	return G
}

// solveRow 求解 (Y'Y + Y'(C-I)Y + lambda*I) x = Y'C p。
func solveRow(obs []conf, fixed, gram [][]float64, nf int, lambda float64) []float64 {
	A := make([][]float64, nf)
	for f := range A {
		A[f] = make([]float64, nf)
		copy(A[f], gram[f])
		A[f][f] += lambda
	}
	b := make([]float64, nf)
	for _, o := range obs {
		y := fixed[o.idx]
		cm1 := o.c - 1
		for f1 := 0; f1 < nf; f1++ {
			for f2 := f1; f2 < nf; f2++ {
				d := cm1 * y[f1] * y[f2]
				A[f1][f2] += d
				if f1 != f2 {
					A[f2][f1] += d
				}
			}
			b[f1] += o.c * y[f1]
		}
	}
	return cholesky(A, b)
}

// cholesky 用 Cholesky 分解解 A x = b，A 对称正定；非正定时主元取 1e-10。
func cholesky(A [][]float64, b []float64) []float64 {
	n := len(b)
	L := make([][]float64, n)
	for i := range L {
		L[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := A[i][j]
			for k := 0; k < j; k++ {
				sum -= L[i][k] * L[j][k]
			}
			if i == j {
				if sum <= 0 {
					sum = 1e-10
				}
				L[i][j] = math.Sqrt(sum)
			} else if L[j][j] != 0 {
				L[i][j] = sum / L[j][j]
			}
		}
	}

	z := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for j := 0; j < i; j++ {
			sum -= L[i][j] * z[j]
		}
		if L[i][i] != 0 {
			z[i] = sum / L[i][i]
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := z[i]
		for j := i + 1; j < n; j++ {
			sum -= L[j][i] * x[j]
		}
		if L[i][i] != 0 {
			x[i] = sum / L[i][i]
		}
	}
	return x
}
