package algorithm

import (
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/kdtree"

	"SplatSphere/src/library/entity"
)

// indexedPoint 携带原始行号的 kd 树节点，用于排除自身
type indexedPoint struct {
	Index int
	Pos   entity.Vec3
}

func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(indexedPoint)
	return p.Pos[d] - q.Pos[d]
}

func (p indexedPoint) Dims() int { return 3 }

// Distance 返回平方欧氏距离
func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(indexedPoint)
	return Vec3DistanceSquared(p.Pos, q.Pos)
}

type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p indexedPoints) Len() int                      { return len(p) }
func (p indexedPoints) Pivot(d kdtree.Dim) int {
	return indexedPlane{Dim: d, indexedPoints: p}.Pivot()
}
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

type indexedPlane struct {
	kdtree.Dim
	indexedPoints
}

func (p indexedPlane) Less(i, j int) bool {
	return p.indexedPoints[i].Pos[p.Dim] < p.indexedPoints[j].Pos[p.Dim]
}
func (p indexedPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p indexedPlane) Slice(start, end int) kdtree.SortSlicer {
	p.indexedPoints = p.indexedPoints[start:end]
	return p
}
func (p indexedPlane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}

// Neighbor 近邻查询结果，Dist 为欧氏距离（非平方）
type Neighbor struct {
	Index int
	Dist  float64
}

// SpatialIndex 基于 kd 树的精确近邻索引，构建后只读，可并发查询
type SpatialIndex struct {
	tree   *kdtree.Tree
	points []entity.Vec3
}

// NewSpatialIndex 构建索引，points 不会被修改
func NewSpatialIndex(points []entity.Vec3) *SpatialIndex {
	s := &SpatialIndex{points: points}
	if len(points) == 0 {
		return s
	}
	nodes := make(indexedPoints, len(points))
	for i, p := range points {
		nodes[i] = indexedPoint{Index: i, Pos: p}
	}
	s.tree = kdtree.New(nodes, false)
	return s
}

// Len 索引中的点数
func (s *SpatialIndex) Len() int { return len(s.points) }

// KNearest 返回第 i 个点的 k 个最近邻（不含自身），按距离升序
func (s *SpatialIndex) KNearest(i, k int) []Neighbor {
	if s.tree == nil || k <= 0 {
		return nil
	}
	keep := kdtree.NewNKeeper(k + 1)
	s.tree.NearestSet(keep, indexedPoint{Index: i, Pos: s.points[i]})

	out := make([]Neighbor, 0, k)
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		q := c.Comparable.(indexedPoint)
		if q.Index == i {
			continue
		}
		out = append(out, Neighbor{Index: q.Index, Dist: math.Sqrt(c.Dist)})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Dist == out[b].Dist {
			return out[a].Index < out[b].Index
		}
		return out[a].Dist < out[b].Dist
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// NearestOther 返回距离第 i 个点最近的其他点；只有一个点时 ok 为 false
func (s *SpatialIndex) NearestOther(i int) (Neighbor, bool) {
	nb := s.KNearest(i, 1)
	if len(nb) == 0 {
		return Neighbor{Index: -1, Dist: math.Inf(1)}, false
	}
	return nb[0], true
}

// WithinRadius 返回与第 i 个点距离不超过 radius 的全部点（含自身），按行号升序
func (s *SpatialIndex) WithinRadius(i int, radius float64) []int {
	if s.tree == nil {
		return nil
	}
	keep := kdtree.NewDistKeeper(radius * radius)
	s.tree.NearestSet(keep, indexedPoint{Index: i, Pos: s.points[i]})

	out := make([]int, 0, len(keep.Heap))
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		out = append(out, c.Comparable.(indexedPoint).Index)
	}
	sort.Ints(out)
	return out
}

// parallelFor 将 [0,n) 切分给 workers 个协程，每个下标只写自己的槽位
func parallelFor(n, workers int, fn func(i int)) {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for start := 0; start < n; start += chunk {
		lo, hi := start, min(start+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// NearestNeighborDistances 每个点到最近其他点的距离；孤立的单点为 +Inf
func NearestNeighborDistances(index *SpatialIndex, workers int) []float64 {
	out := make([]float64, index.Len())
	parallelFor(index.Len(), workers, func(i int) {
		nb, _ := index.NearestOther(i)
		out[i] = nb.Dist
	})
	return out
}

// MeanKNearestSquared 每个点到 k 个最近邻的平方距离均值，没有邻居时为 0
func MeanKNearestSquared(index *SpatialIndex, k, workers int) []float64 {
	out := make([]float64, index.Len())
	parallelFor(index.Len(), workers, func(i int) {
		nb := index.KNearest(i, k)
		if len(nb) == 0 {
			return
		}
		sum := 0.0
		for _, n := range nb {
			sum += n.Dist * n.Dist
		}
		out[i] = sum / float64(len(nb))
	})
	return out
}
