package algorithm

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SplatSphere/src/library/entity"
)

func bruteNearest(points []entity.Vec3, i int) float64 {
	best := math.Inf(1)
	for j, p := range points {
		if j == i {
			continue
		}
		best = math.Min(best, math.Sqrt(Vec3DistanceSquared(points[i], p)))
	}
	return best
}

func randomPoints(n int, seed uint64) []entity.Vec3 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pts := make([]entity.Vec3, n)
	for i := range pts {
		pts[i] = entity.Vec3{r.Float64()*10 - 5, r.Float64()*10 - 5, r.Float64()*10 - 5}
	}
	return pts
}

func TestNearestNeighborDistancesMatchBruteForce(t *testing.T) {
	pts := randomPoints(300, 7)
	index := NewSpatialIndex(pts)

	for _, workers := range []int{1, 4} {
		got := NearestNeighborDistances(index, workers)
		require.Len(t, got, len(pts))
		for i := range pts {
			assert.InDelta(t, bruteNearest(pts, i), got[i], 1e-9, "point %d workers %d", i, workers)
		}
	}
}

func TestNearestOtherExcludesSelf(t *testing.T) {
	pts := []entity.Vec3{{0, 0, 0}, {1, 0, 0}, {5, 0, 0}}
	index := NewSpatialIndex(pts)

	nb, ok := index.NearestOther(0)
	require.True(t, ok)
	assert.Equal(t, 1, nb.Index)
	assert.InDelta(t, 1.0, nb.Dist, 1e-12)

	nb, ok = index.NearestOther(2)
	require.True(t, ok)
	assert.Equal(t, 1, nb.Index)
	assert.InDelta(t, 4.0, nb.Dist, 1e-12)
}

func TestNearestOtherDuplicatePoints(t *testing.T) {
	pts := []entity.Vec3{{2, 2, 2}, {2, 2, 2}}
	index := NewSpatialIndex(pts)
	nb, ok := index.NearestOther(0)
	require.True(t, ok)
	assert.Equal(t, 1, nb.Index)
	assert.Equal(t, 0.0, nb.Dist)
}

func TestSpatialIndexDegenerate(t *testing.T) {
	empty := NewSpatialIndex(nil)
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, NearestNeighborDistances(empty, 4))

	single := NewSpatialIndex([]entity.Vec3{{1, 1, 1}})
	_, ok := single.NearestOther(0)
	assert.False(t, ok)
	d := NearestNeighborDistances(single, 1)
	assert.True(t, math.IsInf(d[0], 1))
}

func TestWithinRadiusIncludesSelf(t *testing.T) {
	pts := []entity.Vec3{{0, 0, 0}, {0.5, 0, 0}, {1, 0, 0}, {3, 0, 0}}
	index := NewSpatialIndex(pts)
	assert.Equal(t, []int{0, 1, 2}, index.WithinRadius(1, 0.6))
	assert.Equal(t, []int{3}, index.WithinRadius(3, 1))
}

func TestMeanKNearestSquared(t *testing.T) {
	pts := []entity.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 2, 0}, {0, 0, 3}}
	index := NewSpatialIndex(pts)
	got := MeanKNearestSquared(index, 3, 2)
	assert.InDelta(t, (1.0+4.0+9.0)/3, got[0], 1e-12)

	lone := MeanKNearestSquared(NewSpatialIndex([]entity.Vec3{{1, 2, 3}}), 3, 1)
	assert.Equal(t, []float64{0}, lone)
}

func TestStandardScaler(t *testing.T) {
	pts := []entity.Vec3{{1, 10, 5}, {3, 10, 5}, {5, 10, 5}}
	var s StandardScaler
	out := s.FitTransform(pts)

	assert.InDelta(t, 3.0, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(8.0/3.0), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "零方差轴保持原尺度")
	assert.InDelta(t, 0.0, out[1][0], 1e-12)
	assert.InDelta(t, 0.0, out[2][1], 1e-12)
	assert.Equal(t, entity.Vec3{1, 10, 5}, pts[0], "输入不应被修改")
}
