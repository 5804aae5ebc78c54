package gaussian

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SplatSphere/src/ply"
)

func TestPLYRoundTrip(t *testing.T) {
	src := syntheticPrimitives(1000, 2, 99)
	m := newLoadedModel(t, src.Clone(), 2)

	var buf bytes.Buffer
	require.NoError(t, m.WritePLY(&buf))

	loaded := NewGaussianModel(2)
	require.NoError(t, loaded.ReadPLY(bytes.NewReader(buf.Bytes())))
	require.Equal(t, 1000, loaded.Len())
	assert.Equal(t, 2, loaded.ActiveSHDegree())
	assertAligned(t, loaded)

	got := loaded.store.Raw()
	want := src.columns()
	for i, c := range got.columns() {
		assert.InDeltaSlice(t, *want[i].data, *c.data, 1e-5, c.name)
	}
}

func TestPLYRestIsChannelMajor(t *testing.T) {
	src := syntheticPrimitives(3, 1, 5)
	m := newLoadedModel(t, src, 1)
	var buf bytes.Buffer
	require.NoError(t, m.WritePLY(&buf))

	table, err := ply.ReadElement(bytes.NewReader(buf.Bytes()), "vertex")
	require.NoError(t, err)
	const k = 3
	for c := 0; c < 3; c++ {
		for j := 0; j < k; j++ {
			col, _, ok := table.Column(fmt.Sprintf("f_rest_%d", c*k+j))
			require.True(t, ok)
			for i := 0; i < 3; i++ {
				assert.Equal(t, src.FeaturesRest[9*i+j*3+c], float32(col[i]))
			}
		}
	}
	normals, err := table.MustColumns("nx", "ny", "nz")
	require.NoError(t, err)
	for _, n := range normals {
		assert.Equal(t, []float64{0, 0, 0}, n)
	}
}

func TestPLYSchemaMismatch(t *testing.T) {
	m := newLoadedModel(t, syntheticPrimitives(10, 2, 1), 2)
	var buf bytes.Buffer
	require.NoError(t, m.WritePLY(&buf))

	other := newLoadedModel(t, syntheticPrimitives(4, 1, 2), 1)
	err := other.ReadPLY(bytes.NewReader(buf.Bytes()))
	assert.ErrorIs(t, err, ply.ErrSchemaMismatch)
	assert.Equal(t, 4, other.Len(), "加载失败时保留原有数据")
}

func TestPLYLoadUnbindsOptimizer(t *testing.T) {
	m := newLoadedModel(t, syntheticPrimitives(6, 0, 1), 0)
	setupTraining(t, m)
	path := filepath.Join(t.TempDir(), "out", "point_cloud.ply")
	require.NoError(t, m.SavePLY(path))

	loaded := newLoadedModel(t, syntheticPrimitives(2, 0, 3), 0)
	setupTraining(t, loaded)
	require.NoError(t, loaded.LoadPLY(path))
	assert.Equal(t, 6, loaded.Len())
	assert.Nil(t, loaded.Optimizer())
	assert.ErrorIs(t, loaded.ResetOpacity(), ErrNotTrainable)

	assert.Error(t, loaded.LoadPLY(filepath.Join(t.TempDir(), "missing.ply")))
}

func TestPLYRejectsNonContiguousRest(t *testing.T) {
	m := newLoadedModel(t, syntheticPrimitives(5, 1, 7), 1)
	var buf bytes.Buffer
	require.NoError(t, m.WritePLY(&buf))
	table, err := ply.ReadElement(bytes.NewReader(buf.Bytes()), "vertex")
	require.NoError(t, err)

	// 个数正确但编号跳跃: f_rest_0..7 与 f_rest_100
	names := make([]string, len(table.Element.Properties))
	cols := make([][]float32, len(names))
	for i, p := range table.Element.Properties {
		names[i] = p.Name
		if p.Name == "f_rest_8" {
			names[i] = "f_rest_100"
		}
		cols[i] = make([]float32, table.Len())
		for row, v := range table.Columns[i] {
			cols[i][row] = float32(v)
		}
	}
	var shifted bytes.Buffer
	require.NoError(t, ply.WriteFloatTable(&shifted, "vertex", names, cols))

	other := newLoadedModel(t, syntheticPrimitives(3, 1, 2), 1)
	err = other.ReadPLY(bytes.NewReader(shifted.Bytes()))
	assert.ErrorIs(t, err, ply.ErrSchemaMismatch)
	assert.Equal(t, 3, other.Len())
}
