package gaussian

import (
	"fmt"

	"SplatSphere/src/library/entity"
)

// Primitives 一批高斯的原始参数，逐行按行主序平铺在各列中。
// FeaturesRest 按系数优先排列：第 k 个系数的第 c 个通道位于 [k*3+c]
type Primitives struct {
	XYZ          []float32
	XYZInitial   []float32
	FeaturesDC   []float32
	FeaturesRest []float32
	Opacity      []float32
	Scaling      []float32
	Rotation     []float32
	// RestWidth 每行 FeaturesRest 的元素个数，即 3K
	RestWidth int
}

// NewPrimitives 分配 n 行零值参数
func NewPrimitives(n, restWidth int) Primitives {
	return Primitives{
		XYZ:          make([]float32, 3*n),
		XYZInitial:   make([]float32, 3*n),
		FeaturesDC:   make([]float32, 3*n),
		FeaturesRest: make([]float32, restWidth*n),
		Opacity:      make([]float32, n),
		Scaling:      make([]float32, 3*n),
		Rotation:     make([]float32, 4*n),
		RestWidth:    restWidth,
	}
}

// Len 行数，以 XYZ 为准
func (p Primitives) Len() int { return len(p.XYZ) / 3 }

func (p Primitives) width(field entity.Field) int {
	if field == entity.FieldFeaturesRest {
		return p.RestWidth
	}
	return field.Width(0)
}

// Column 返回字段对应的列
func (p Primitives) Column(field entity.Field) []float32 {
	switch field {
	case entity.FieldXYZ:
		return p.XYZ
	case entity.FieldFeaturesDC:
		return p.FeaturesDC
	case entity.FieldFeaturesRest:
		return p.FeaturesRest
	case entity.FieldOpacity:
		return p.Opacity
	case entity.FieldScaling:
		return p.Scaling
	case entity.FieldRotation:
		return p.Rotation
	}
	return nil
}

func (p *Primitives) setColumn(field entity.Field, values []float32) {
	switch field {
	case entity.FieldXYZ:
		p.XYZ = values
	case entity.FieldFeaturesDC:
		p.FeaturesDC = values
	case entity.FieldFeaturesRest:
		p.FeaturesRest = values
	case entity.FieldOpacity:
		p.Opacity = values
	case entity.FieldScaling:
		p.Scaling = values
	case entity.FieldRotation:
		p.Rotation = values
	}
}

type column struct {
	name  string
	data  *[]float32
	width int
}

func (p *Primitives) columns() []column {
	return []column{
		{"xyz", &p.XYZ, 3},
		{"xyz_initial", &p.XYZInitial, 3},
		{"f_dc", &p.FeaturesDC, 3},
		{"f_rest", &p.FeaturesRest, p.RestWidth},
		{"opacity", &p.Opacity, 1},
		{"scaling", &p.Scaling, 3},
		{"rotation", &p.Rotation, 4},
	}
}

// Validate 检查所有列的行数一致
func (p Primitives) Validate() error {
	if len(p.XYZ)%3 != 0 {
		return fmt.Errorf("%w: xyz 长度 %d 不是 3 的倍数", ErrRowMismatch, len(p.XYZ))
	}
	if p.RestWidth < 0 {
		return fmt.Errorf("%w: f_rest 宽度为负 %d", ErrRowMismatch, p.RestWidth)
	}
	n := p.Len()
	for _, c := range p.columns() {
		if len(*c.data) != n*c.width {
			return fmt.Errorf("%w: %s 长度 %d，期望 %d 行×%d", ErrRowMismatch, c.name, len(*c.data), n, c.width)
		}
	}
	return nil
}

// Select 返回 keep 为 true 的行组成的新批次
func (p Primitives) Select(keep []bool) Primitives {
	out := Primitives{RestWidth: p.RestWidth}
	src := p.columns()
	dst := out.columns()
	for i := range src {
		*dst[i].data = selectRows(*src[i].data, keep, src[i].width)
	}
	return out
}

// Repeat 将整批数据按块重复 n 次：先是全部行，再是全部行的第二份
func (p Primitives) Repeat(n int) Primitives {
	out := Primitives{RestWidth: p.RestWidth}
	src := p.columns()
	dst := out.columns()
	for i := range src {
		col := make([]float32, 0, len(*src[i].data)*n)
		for r := 0; r < n; r++ {
			col = append(col, *src[i].data...)
		}
		*dst[i].data = col
	}
	return out
}

// Clone 深拷贝
func (p Primitives) Clone() Primitives {
	return p.Repeat(1)
}

// appendRows 将 rows 追加到 p 之后，返回新的批次，不修改 p 的底层数组
func (p Primitives) appendRows(rows Primitives) Primitives {
	out := Primitives{RestWidth: p.RestWidth}
	src := p.columns()
	add := rows.columns()
	dst := out.columns()
	for i := range src {
		col := make([]float32, 0, len(*src[i].data)+len(*add[i].data))
		col = append(col, *src[i].data...)
		*dst[i].data = append(col, *add[i].data...)
	}
	return out
}

func selectRows[T any](src []T, keep []bool, width int) []T {
	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	dst := make([]T, 0, kept*width)
	for i, k := range keep {
		if k {
			dst = append(dst, src[i*width:(i+1)*width]...)
		}
	}
	return dst
}

func invert(mask []bool) []bool {
	out := make([]bool, len(mask))
	for i, m := range mask {
		out[i] = !m
	}
	return out
}

func countTrue(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}
