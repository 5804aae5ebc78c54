package entity

import "math"

// Vec3 三维坐标
type Vec3 [3]float64

// Sub 返回 v-o
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Norm 欧几里得长度
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Vec3sFromFloat32 将行主序的 xyz 列（每行3个）转换为 Vec3 切片
func Vec3sFromFloat32(xyz []float32) []Vec3 {
	out := make([]Vec3, len(xyz)/3)
	for i := range out {
		out[i] = Vec3{float64(xyz[3*i]), float64(xyz[3*i+1]), float64(xyz[3*i+2])}
	}
	return out
}

// ClusterSummary 一个密度聚类簇的摘要
type ClusterSummary struct {
	Label  int
	Size   int
	Center Vec3
}

// BoundingBox 轴对齐包围盒
type BoundingBox struct {
	Min Vec3
	Max Vec3
}

// Size 返回各轴尺寸（长、宽、高）
func (b BoundingBox) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Bounds 计算点集的包围盒，空集返回零值
func Bounds(points []Vec3) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}
	b := BoundingBox{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		for d := 0; d < 3; d++ {
			b.Min[d] = math.Min(b.Min[d], p[d])
			b.Max[d] = math.Max(b.Max[d], p[d])
		}
	}
	return b
}
