package entity

import "fmt"

// Field 可优化的逐高斯参数列
type Field int

const (
	FieldXYZ Field = iota
	FieldFeaturesDC
	FieldFeaturesRest
	FieldOpacity
	FieldScaling
	FieldRotation
)

// OptimizableFields 固定顺序的全部可优化字段
var OptimizableFields = [...]Field{
	FieldXYZ,
	FieldFeaturesDC,
	FieldFeaturesRest,
	FieldOpacity,
	FieldScaling,
	FieldRotation,
}

var fieldNames = [...]string{"xyz", "f_dc", "f_rest", "opacity", "scaling", "rotation"}

func (f Field) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// Valid 是否为已定义字段
func (f Field) Valid() bool {
	return f >= FieldXYZ && f <= FieldRotation
}

// Width 每行元素个数；f_rest 的宽度取决于球谐最大阶数
func (f Field) Width(maxSHDegree int) int {
	switch f {
	case FieldXYZ, FieldFeaturesDC, FieldScaling:
		return 3
	case FieldFeaturesRest:
		return 3 * RestCoefficients(maxSHDegree)
	case FieldOpacity:
		return 1
	case FieldRotation:
		return 4
	}
	return 0
}

// ParseField 按名称查找字段
func ParseField(name string) (Field, error) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("未知字段: %q", name)
}

// RestCoefficients 除 DC 外每个颜色通道的球谐系数个数 K=(D+1)^2-1
func RestCoefficients(maxSHDegree int) int {
	return (maxSHDegree+1)*(maxSHDegree+1) - 1
}
