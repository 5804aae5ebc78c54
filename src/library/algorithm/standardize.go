package algorithm

import (
	"gonum.org/v1/gonum/stat"

	"SplatSphere/src/library/entity"
)

// StandardScaler 按轴标准化（零均值、单位方差），方差为零的轴保持原尺度
type StandardScaler struct {
	Mean  entity.Vec3
	Scale entity.Vec3
}

// Fit 计算每个轴的均值与总体标准差
func (s *StandardScaler) Fit(points []entity.Vec3) {
	s.Mean = entity.Vec3{}
	s.Scale = entity.Vec3{1, 1, 1}
	if len(points) == 0 {
		return
	}

	column := make([]float64, len(points))
	for d := 0; d < 3; d++ {
		for i, p := range points {
			column[i] = p[d]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		s.Mean[d] = mean
		if std > 0 {
			s.Scale[d] = std
		}
	}
}

// Transform 返回标准化后的新切片，不修改输入
func (s *StandardScaler) Transform(points []entity.Vec3) []entity.Vec3 {
	out := make([]entity.Vec3, len(points))
	for i, p := range points {
		for d := 0; d < 3; d++ {
			out[i][d] = (p[d] - s.Mean[d]) / s.Scale[d]
		}
	}
	return out
}

// FitTransform Fit 后立即 Transform
func (s *StandardScaler) FitTransform(points []entity.Vec3) []entity.Vec3 {
	s.Fit(points)
	return s.Transform(points)
}
