package gaussian

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SplatSphere/src/library/config"
	"SplatSphere/src/library/entity"
)

func syntheticPrimitives(n, degree int, seed uint64) Primitives {
	r := rand.New(rand.NewPCG(seed, seed+1))
	p := NewPrimitives(n, 3*entity.RestCoefficients(degree))
	fill := func(dst []float32, lo, hi float32) {
		for i := range dst {
			dst[i] = lo + (hi-lo)*r.Float32()
		}
	}
	fill(p.XYZ, -5, 5)
	fill(p.FeaturesDC, -1, 1)
	fill(p.FeaturesRest, -0.5, 0.5)
	fill(p.Opacity, -4, 4)
	fill(p.Scaling, -6, -2)
	fill(p.Rotation, -1, 1)
	for i := 0; i < n; i++ {
		p.Rotation[4*i] += 2
	}
	copy(p.XYZInitial, p.XYZ)
	return p
}

func newLoadedModel(t *testing.T, p Primitives, degree int) *GaussianModel {
	t.Helper()
	m := NewGaussianModel(degree, WithSeed(7))
	require.NoError(t, m.store.load(p))
	m.spatialLRScale = 1
	return m
}

func setupTraining(t *testing.T, m *GaussianModel) {
	t.Helper()
	require.NoError(t, m.TrainingSetup(config.GetDefaultTrainingConfig()))
}

// warmOptimizer 对每个字段做一步更新，使动量状态存在
func warmOptimizer(t *testing.T, m *GaussianModel) {
	t.Helper()
	grads := make(map[entity.Field][]float32)
	for _, f := range entity.OptimizableFields {
		g := make([]float32, len(m.store.Parameter(f)))
		for i := range g {
			g[i] = 0.01
		}
		grads[f] = g
	}
	require.NoError(t, m.Step(grads, nil))
}

func assertAligned(t *testing.T, m *GaussianModel) {
	t.Helper()
	n := m.Len()
	require.NoError(t, m.store.checkAligned())
	p := m.store.Raw()
	assert.Len(t, p.XYZ, 3*n)
	assert.Len(t, p.XYZInitial, 3*n)
	assert.Len(t, p.FeaturesDC, 3*n)
	assert.Len(t, p.FeaturesRest, p.RestWidth*n)
	assert.Len(t, p.Opacity, n)
	assert.Len(t, p.Scaling, 3*n)
	assert.Len(t, p.Rotation, 4*n)
	assert.Len(t, m.store.GradAccum(), n)
	assert.Len(t, m.store.Denom(), n)
	assert.Len(t, m.store.MaxRadii2D(), n)
	if m.optimizer == nil {
		return
	}
	for _, f := range entity.OptimizableFields {
		if rows, ok := m.optimizer.Rows(f); ok {
			assert.Equal(t, n, rows, "%s 动量行数", f)
		}
	}
}

func setRow3(dst []float32, row int, v [3]float32) {
	copy(dst[3*row:3*row+3], v[:])
}

func row(col []float32, width, i int) []float32 {
	return col[i*width : (i+1)*width]
}
