package algorithm

import (
	"fmt"

	"SplatSphere/src/library/entity"
)

// Vec3DistanceSquared 三维点距离的平方，无需维度检查
func Vec3DistanceSquared(a, b entity.Vec3) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return dx*dx + dy*dy + dz*dz
}

// calculateMean 计算一组点的均值
func calculateMean(points []entity.Vec3) (entity.Vec3, error) {
	if len(points) == 0 {
		return entity.Vec3{}, fmt.Errorf("点集合不能为空")
	}

	var mean entity.Vec3
	for _, point := range points {
		for i := 0; i < 3; i++ {
			mean[i] += point[i]
		}
	}

	for i := 0; i < 3; i++ {
		mean[i] /= float64(len(points))
	}

	return mean, nil
}
