package ply

import (
	"io"

	"SplatSphere/src/library/entity"
)

// ReadPointCloud 读取 vertex 元素的 x y z red green blue；整数颜色按 255 归一化
func ReadPointCloud(r io.Reader) (entity.PointCloud, error) {
	t, err := ReadElement(r, "vertex")
	if err != nil {
		return entity.PointCloud{}, err
	}
	cols, err := t.MustColumns("x", "y", "z", "red", "green", "blue")
	if err != nil {
		return entity.PointCloud{}, err
	}

	scale := [3]float64{1, 1, 1}
	for c, name := range []string{"red", "green", "blue"} {
		if _, p, _ := t.Column(name); p.Type != "float" && p.Type != "float32" && p.Type != "double" && p.Type != "float64" {
			scale[c] = 255
		}
	}

	pcd := entity.PointCloud{
		Points: make([]entity.Vec3, t.Len()),
		Colors: make([]entity.Vec3, t.Len()),
	}
	for i := 0; i < t.Len(); i++ {
		for d := 0; d < 3; d++ {
			pcd.Points[i][d] = cols[d][i]
			pcd.Colors[i][d] = cols[3+d][i] / scale[d]
		}
	}
	return pcd, nil
}
