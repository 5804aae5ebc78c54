package optim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SplatSphere/src/library/entity"
)

type fakeCaps bool

func (c fakeCaps) SparseKernelsSupported() bool { return bool(c) }

func testGroups() []GroupConfig {
	return []GroupConfig{
		{Field: entity.FieldXYZ, Width: 3, LR: 0.1},
		{Field: entity.FieldOpacity, Width: 1, LR: 0.05},
		{Field: entity.FieldFeaturesRest, Width: 0, LR: 0.01},
	}
}

func TestNewOptimizerFallsBackWithoutSparseKernels(t *testing.T) {
	opt, err := NewOptimizer(KindSparseAdam, testGroups(), fakeCaps(false))
	require.NoError(t, err)
	assert.Equal(t, KindDefault, opt.Kind())
	_, ok := opt.(*Adam)
	assert.True(t, ok)

	opt, err = NewOptimizer(KindSparseAdam, testGroups(), nil)
	require.NoError(t, err)
	assert.Equal(t, KindDefault, opt.Kind())

	opt, err = NewOptimizer(KindSparseAdam, testGroups(), fakeCaps(true))
	require.NoError(t, err)
	assert.Equal(t, KindSparseAdam, opt.Kind())

	_, err = NewSparseAdam(testGroups(), fakeCaps(false))
	assert.True(t, errors.Is(err, ErrSparseUnavailable))

	_, err = NewOptimizer("lbfgs", testGroups(), nil)
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("sparse_adam")
	require.NoError(t, err)
	assert.Equal(t, KindSparseAdam, k)
	k, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindDefault, k)
	_, err = ParseKind("sgd")
	assert.Error(t, err)
}

func TestNewAdamRejectsBadGroups(t *testing.T) {
	_, err := NewAdam([]GroupConfig{{Field: entity.Field(42), Width: 1}})
	assert.True(t, errors.Is(err, ErrUnknownField))
	_, err = NewAdam([]GroupConfig{{Field: entity.FieldXYZ, Width: 3}, {Field: entity.FieldXYZ, Width: 3}})
	assert.Error(t, err)
}

func TestAdamStepMatchesReference(t *testing.T) {
	opt, err := NewAdam(testGroups())
	require.NoError(t, err)

	param := []float32{1, 2, 3}
	grad := []float32{0.5, -0.5, 0}
	require.NoError(t, opt.Step(entity.FieldXYZ, param, grad, nil))

	// 第一步 Adam 的更新量约为 lr*sign(g)
	assert.InDelta(t, 0.9, param[0], 1e-6)
	assert.InDelta(t, 2.1, param[1], 1e-6)
	assert.Equal(t, float32(3), param[2])

	m, v, ok := opt.Moments(entity.FieldXYZ)
	require.True(t, ok)
	assert.InDelta(t, 0.05, m[0], 1e-7)
	assert.InDelta(t, 0.00025, v[0], 1e-9)

	rows, ok := opt.Rows(entity.FieldXYZ)
	require.True(t, ok)
	assert.Equal(t, 1, rows)
}

func TestSparseAdamSkipsInvisibleRows(t *testing.T) {
	opt, err := NewSparseAdam(testGroups(), fakeCaps(true))
	require.NoError(t, err)

	param := []float32{1, 1, 1}
	grad := []float32{1, 1, 1}
	require.NoError(t, opt.Step(entity.FieldOpacity, param, grad, []bool{true, false, true}))
	assert.InDelta(t, 0.95, param[0], 1e-6)
	assert.Equal(t, float32(1), param[1])
	assert.InDelta(t, 0.95, param[2], 1e-6)

	m, _, _ := opt.Moments(entity.FieldOpacity)
	assert.Equal(t, float32(0), m[1])

	assert.True(t, errors.Is(opt.Step(entity.FieldOpacity, param, grad, []bool{true}), ErrStateShape))
}

func TestStateFollowsStructuralEdits(t *testing.T) {
	opt, err := NewAdam(testGroups())
	require.NoError(t, err)

	// 尚无状态时扩展与压缩都是空操作
	require.NoError(t, opt.Extend(entity.FieldOpacity, 5))
	require.NoError(t, opt.Compact(entity.FieldOpacity, []bool{true}))
	_, ok := opt.Rows(entity.FieldOpacity)
	assert.False(t, ok)

	param := []float32{1, 2, 3, 4}
	grad := []float32{1, 2, 3, 4}
	require.NoError(t, opt.Step(entity.FieldOpacity, param, grad, nil))
	m, _, _ := opt.Moments(entity.FieldOpacity)
	before := append([]float32(nil), m...)

	require.NoError(t, opt.Extend(entity.FieldOpacity, 2))
	rows, _ := opt.Rows(entity.FieldOpacity)
	assert.Equal(t, 6, rows)
	m, _, _ = opt.Moments(entity.FieldOpacity)
	assert.Equal(t, float32(0), m[5])

	require.NoError(t, opt.Compact(entity.FieldOpacity, []bool{false, true, false, true, false, true}))
	m, _, _ = opt.Moments(entity.FieldOpacity)
	assert.Equal(t, []float32{before[0], before[2], 0}, m)

	assert.True(t, errors.Is(opt.Compact(entity.FieldOpacity, []bool{true}), ErrStateShape))

	require.NoError(t, opt.Reset(entity.FieldOpacity, 7))
	m, v, _ := opt.Moments(entity.FieldOpacity)
	assert.Equal(t, make([]float32, 7), m)
	assert.Equal(t, make([]float32, 7), v)

	assert.True(t, errors.Is(opt.Extend(entity.FieldScaling, 1), ErrUnknownField))
}

func TestZeroWidthGroupTracksRows(t *testing.T) {
	opt, err := NewAdam(testGroups())
	require.NoError(t, err)

	require.NoError(t, opt.Reset(entity.FieldFeaturesRest, 4))
	require.NoError(t, opt.Extend(entity.FieldFeaturesRest, 2))
	require.NoError(t, opt.Compact(entity.FieldFeaturesRest, []bool{true, false, false, false, false, true}))
	rows, ok := opt.Rows(entity.FieldFeaturesRest)
	require.True(t, ok)
	assert.Equal(t, 4, rows)
	assert.NoError(t, opt.Step(entity.FieldFeaturesRest, nil, nil, nil))
}

func TestLearningRate(t *testing.T) {
	opt, err := NewAdam(testGroups())
	require.NoError(t, err)
	require.NoError(t, opt.SetLearningRate(entity.FieldXYZ, 0.5))
	lr, err := opt.LearningRate(entity.FieldXYZ)
	require.NoError(t, err)
	assert.Equal(t, 0.5, lr)
	_, err = opt.LearningRate(entity.FieldRotation)
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestStateDictRoundTrip(t *testing.T) {
	opt, err := NewAdam(testGroups())
	require.NoError(t, err)
	param := []float32{1, 2, 3, 4, 5, 6}
	require.NoError(t, opt.Step(entity.FieldXYZ, param, []float32{1, 1, 1, -1, -1, -1}, nil))
	require.NoError(t, opt.SetLearningRate(entity.FieldOpacity, 0.2))

	blob, err := opt.StateDict()
	require.NoError(t, err)

	restored, err := NewSparseAdam(testGroups(), fakeCaps(true))
	require.NoError(t, err)
	require.NoError(t, restored.LoadStateDict(blob))

	m1, v1, _ := opt.Moments(entity.FieldXYZ)
	m2, v2, ok := restored.Moments(entity.FieldXYZ)
	require.True(t, ok)
	assert.Equal(t, m1, m2)
	assert.Equal(t, v1, v2)
	lr, _ := restored.LearningRate(entity.FieldOpacity)
	assert.Equal(t, 0.2, lr)
	_, ok = restored.Rows(entity.FieldOpacity)
	assert.False(t, ok)

	// 再走一步两者结果一致
	p1 := append([]float32(nil), param...)
	p2 := append([]float32(nil), param...)
	g := []float32{0.3, 0.3, 0.3, 0.3, 0.3, 0.3}
	require.NoError(t, opt.Step(entity.FieldXYZ, p1, g, nil))
	require.NoError(t, restored.Step(entity.FieldXYZ, p2, g, nil))
	for i := range p1 {
		assert.False(t, math.IsNaN(float64(p1[i])))
		assert.InDelta(t, p1[i], p2[i], 1e-7)
	}

	other, err := NewAdam([]GroupConfig{{Field: entity.FieldXYZ, Width: 3, LR: 1}})
	require.NoError(t, err)
	assert.True(t, errors.Is(other.LoadStateDict(blob), ErrStateShape))
	assert.Error(t, other.LoadStateDict([]byte("garbage")))
}
