package model

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 两组用户分别偏好两组物品
func blockMatrix() *InteractionMatrix {
	var entries []Entry
	for u := 0; u < 4; u++ {
		for i := 0; i < 3; i++ {
			entries = append(entries, Entry{User: u, Item: i, Count: 3})
		}
	}
	for u := 4; u < 8; u++ {
		for i := 3; i < 6; i++ {
			entries = append(entries, Entry{User: u, Item: i, Count: 3})
		}
	}
	return &InteractionMatrix{Rows: 8, Cols: 6, Entries: entries}
}

func TestALSFit(t *testing.T) {
	als := &ALS{Factors: 4, Regularization: 0.01, Iterations: 10, Alpha: 1, Workers: 3}

	f, err := als.Fit(context.Background(), blockMatrix())
	require.NoError(t, err)
	require.Len(t, f.UserFactors, 8)
	require.Len(t, f.ItemFactors, 6)
	assert.Equal(t, 4, f.NumFactors)

	for _, row := range append(f.UserFactors, f.ItemFactors...) {
		for _, v := range row {
			assert.False(t, math.IsNaN(v))
		}
	}

	// 用户 0 更偏好自己组内的物品
	assert.Greater(t, f.Dot(0, 0), f.Dot(0, 4))
	assert.Greater(t, f.Dot(5, 4), f.Dot(5, 1))
}

func TestALSDeterministic(t *testing.T) {
	als := &ALS{Factors: 3, Regularization: 0.01, Iterations: 5, Alpha: 1, Workers: 2}
	a, err := als.Fit(context.Background(), blockMatrix())
	require.NoError(t, err)
	b, err := als.Fit(context.Background(), blockMatrix())
	require.NoError(t, err)
	assert.Equal(t, a.UserFactors, b.UserFactors)
}

func TestALSErrors(t *testing.T) {
	als := NewALS()
	_, err := als.Fit(context.Background(), &InteractionMatrix{})
	assert.ErrorIs(t, err, ErrEmptyMatrix)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = als.Fit(ctx, blockMatrix())
	assert.ErrorIs(t, err, context.Canceled)

	_, err = (&ALS{Factors: 0, Iterations: 1}).Fit(context.Background(), blockMatrix())
	assert.Error(t, err)
}

func TestCholesky(t *testing.T) {
	A := [][]float64{{4, 2}, {2, 3}}
	x := cholesky(A, []float64{2, 1})
	assert.InDelta(t, 0.5, x[0], 1e-9)
	assert.InDelta(t, 0.0, x[1], 1e-9)
}

func TestNewALSDefaults(t *testing.T) {
	als := NewALS()
	assert.Equal(t, 50, als.Factors)
	assert.Equal(t, 0.01, als.Regularization)
	assert.Equal(t, 20, als.Iterations)
	assert.Equal(t, "als", als.Name())
}
