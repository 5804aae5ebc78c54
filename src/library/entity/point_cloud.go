package entity

import "fmt"

// PointCloud 初始化用的彩色点云，颜色取值 [0,1]
type PointCloud struct {
	Points []Vec3
	Colors []Vec3
}

// Len 点数
func (p PointCloud) Len() int { return len(p.Points) }

// Validate 点与颜色必须一一对应
func (p PointCloud) Validate() error {
	if len(p.Points) != len(p.Colors) {
		return fmt.Errorf("点云坐标 %d 个，颜色 %d 个", len(p.Points), len(p.Colors))
	}
	return nil
}

// Filter 保留 keep 为 true 的点，顺序不变
func (p PointCloud) Filter(keep []bool) PointCloud {
	out := PointCloud{}
	for i, k := range keep {
		if k {
			out.Points = append(out.Points, p.Points[i])
			out.Colors = append(out.Colors, p.Colors[i])
		}
	}
	return out
}
