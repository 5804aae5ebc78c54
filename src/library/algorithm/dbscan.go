package algorithm

import (
	"fmt"
	"sort"

	"SplatSphere/src/library/entity"
)

// Noise DBSCAN 噪声标签
const Noise = -1

// DBSCAN 执行基于密度的聚类
// points: 输入数据点（调用方负责标准化）
// eps: 邻域半径（欧几里得距离，含边界）
// minSamples: 成为核心点所需的邻域点数（含自身）
// workers: 邻域查询并行度
// 返回值: 每个点的簇标签，噪声为 Noise；空输入返回空切片
func DBSCAN(points []entity.Vec3, eps float64, minSamples int, workers int) ([]int, error) {
	if eps <= 0 {
		return nil, fmt.Errorf("eps 必须为正数: %v", eps)
	}
	if minSamples < 1 {
		return nil, fmt.Errorf("minSamples 必须是正整数: %d", minSamples)
	}
	if len(points) == 0 {
		return []int{}, nil
	}

	index := NewSpatialIndex(points)

	// 邻域只依赖点集本身，可以并行计算后再按顺序扩展
	neighborhoods := make([][]int, len(points))
	parallelFor(len(points), workers, func(i int) {
		neighborhoods[i] = index.WithinRadius(i, eps)
	})

	core := make([]bool, len(points))
	for i, nb := range neighborhoods {
		core[i] = len(nb) >= minSamples
	}

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = Noise
	}

	label := 0
	stack := make([]int, 0, 64)
	for i := range points {
		if labels[i] != Noise || !core[i] {
			continue
		}
		labels[i] = label
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, q := range neighborhoods[p] {
				if labels[q] != Noise {
					continue
				}
				labels[q] = label
				if core[q] {
					stack = append(stack, q)
				}
			}
		}
		label++
	}

	return labels, nil
}

// ClusterCenters 按标签分组计算每个簇的质心，忽略噪声，按标签升序返回
func ClusterCenters(points []entity.Vec3, labels []int) ([]entity.ClusterSummary, error) {
	if len(points) != len(labels) {
		return nil, fmt.Errorf("点数与标签数不匹配: %d vs %d", len(points), len(labels))
	}

	clusterPoints := make(map[int][]entity.Vec3)
	for i, l := range labels {
		if l == Noise {
			continue
		}
		clusterPoints[l] = append(clusterPoints[l], points[i])
	}

	keys := make([]int, 0, len(clusterPoints))
	for l := range clusterPoints {
		keys = append(keys, l)
	}
	sort.Ints(keys)

	summaries := make([]entity.ClusterSummary, 0, len(keys))
	for _, l := range keys {
		mean, err := calculateMean(clusterPoints[l])
		if err != nil {
			return nil, fmt.Errorf("计算簇 %d 质心失败: %w", l, err)
		}
		summaries = append(summaries, entity.ClusterSummary{Label: l, Size: len(clusterPoints[l]), Center: mean})
	}
	return summaries, nil
}

// CountNoise 统计噪声点个数
func CountNoise(labels []int) int {
	n := 0
	for _, l := range labels {
		if l == Noise {
			n++
		}
	}
	return n
}
