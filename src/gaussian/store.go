package gaussian

import (
	"fmt"
	"math"

	"SplatSphere/src/library/entity"
)

// StateAdapter 将结构编辑同步到外部优化器的动量状态。
// 尚无状态的字段，Extend 与 Compact 为空操作；Reset 总是重建为零状态
type StateAdapter interface {
	Extend(field entity.Field, rows int) error
	Compact(field entity.Field, removed []bool) error
	Reset(field entity.Field, rows int) error
}

// rowCounter 可选接口，用于在结构编辑前核对动量行数
type rowCounter interface {
	Rows(field entity.Field) (int, bool)
}

// PrimitiveStore 持有全部逐高斯数组，保证任意结构编辑后行对齐。
// 不可重入：调用方需要串行化所有结构编辑
type PrimitiveStore struct {
	prims      Primitives
	gradAccum  []float32
	denom      []int32
	maxRadii2D []float32
	version    uint64
	adapter    StateAdapter
}

// NewPrimitiveStore 创建空存储，restWidth 为每行 f_rest 元素个数
func NewPrimitiveStore(restWidth int) *PrimitiveStore {
	return &PrimitiveStore{prims: NewPrimitives(0, restWidth)}
}

// Bind 绑定优化器状态适配器，nil 表示解除绑定
func (s *PrimitiveStore) Bind(adapter StateAdapter) {
	s.adapter = adapter
}

func (s *PrimitiveStore) Len() int { return s.prims.Len() }

func (s *PrimitiveStore) RestWidth() int { return s.prims.RestWidth }

// Version 每次结构编辑后递增，缓存据此判断是否过期
func (s *PrimitiveStore) Version() uint64 { return s.version }

// Touch 参数被原地修改后调用，使依赖位置的缓存失效
func (s *PrimitiveStore) Touch() { s.version++ }

// Raw 返回当前参数列；结构编辑后需要重新获取
func (s *PrimitiveStore) Raw() Primitives { return s.prims }

// Parameter 返回字段的活动参数列，供优化器原地更新
func (s *PrimitiveStore) Parameter(field entity.Field) []float32 {
	return s.prims.Column(field)
}

func (s *PrimitiveStore) GradAccum() []float32  { return s.gradAccum }
func (s *PrimitiveStore) Denom() []int32        { return s.denom }
func (s *PrimitiveStore) MaxRadii2D() []float32 { return s.maxRadii2D }

func (s *PrimitiveStore) checkAligned() error {
	if err := s.prims.Validate(); err != nil {
		return err
	}
	n := s.prims.Len()
	if len(s.gradAccum) != n || len(s.denom) != n || len(s.maxRadii2D) != n {
		return fmt.Errorf("%w: 参数 %d 行，grad_accum %d，denom %d，max_radii2D %d",
			ErrRowMismatch, n, len(s.gradAccum), len(s.denom), len(s.maxRadii2D))
	}
	if rc, ok := s.adapter.(rowCounter); ok {
		for _, f := range entity.OptimizableFields {
			if rows, has := rc.Rows(f); has && rows != n {
				return fmt.Errorf("%w: %s 动量 %d 行，参数 %d 行", ErrRowMismatch, f, rows, n)
			}
		}
	}
	return nil
}

// Append 在末尾追加 rows，辅助统计为零，并同步扩展动量状态
func (s *PrimitiveStore) Append(rows Primitives) error {
	if err := s.checkAligned(); err != nil {
		return err
	}
	if err := rows.Validate(); err != nil {
		return fmt.Errorf("追加的数据不一致: %w", err)
	}
	if rows.RestWidth != s.prims.RestWidth {
		return fmt.Errorf("%w: f_rest 宽度 %d，存储为 %d", ErrRowMismatch, rows.RestWidth, s.prims.RestWidth)
	}
	n := rows.Len()
	if n == 0 {
		return nil
	}

	if s.adapter != nil {
		for i, f := range entity.OptimizableFields {
			if err := s.adapter.Extend(f, n); err != nil {
				err = fmt.Errorf("扩展 %s 的优化器状态失败: %w", f, err)
				return s.rollbackExtend(entity.OptimizableFields[:i], n, err)
			}
		}
	}

	s.prims = s.prims.appendRows(rows)
	s.gradAccum = append(s.gradAccum, make([]float32, n)...)
	s.denom = append(s.denom, make([]int32, n)...)
	s.maxRadii2D = append(s.maxRadii2D, make([]float32, n)...)
	s.version++
	return nil
}

// rollbackExtend 撤销已扩展字段末尾的 n 行动量
func (s *PrimitiveStore) rollbackExtend(done []entity.Field, n int, cause error) error {
	tail := make([]bool, s.Len()+n)
	for i := s.Len(); i < len(tail); i++ {
		tail[i] = true
	}
	for _, f := range done {
		if err := s.adapter.Compact(f, tail); err != nil {
			return fmt.Errorf("%w; 回滚 %s 失败: %v", cause, f, err)
		}
	}
	return cause
}

// Remove 删除 mask 为 true 的行，保留剩余行的相对顺序，返回删除数量。
// 动量压缩无法撤销：中途失败时数组保持原样，已压缩字段的行数不再对齐，
// 绑定的适配器实现 Rows 时下一次结构编辑会返回 ErrRowMismatch
func (s *PrimitiveStore) Remove(mask []bool) (int, error) {
	if err := s.checkAligned(); err != nil {
		return 0, err
	}
	if len(mask) != s.Len() {
		return 0, fmt.Errorf("%w: 掩码 %d 行，高斯 %d 个", ErrMaskLength, len(mask), s.Len())
	}
	removed := countTrue(mask)
	if removed == 0 {
		return 0, nil
	}

	keep := invert(mask)
	next := s.prims.Select(keep)
	gradAccum := selectRows(s.gradAccum, keep, 1)
	denom := selectRows(s.denom, keep, 1)
	maxRadii := selectRows(s.maxRadii2D, keep, 1)

	if s.adapter != nil {
		for _, f := range entity.OptimizableFields {
			if err := s.adapter.Compact(f, mask); err != nil {
				return 0, fmt.Errorf("压缩 %s 的优化器状态失败: %w", f, err)
			}
		}
	}

	s.prims = next
	s.gradAccum = gradAccum
	s.denom = denom
	s.maxRadii2D = maxRadii
	s.version++
	return removed, nil
}

// ReplaceField 整体替换一个字段，对应的动量状态清零
func (s *PrimitiveStore) ReplaceField(field entity.Field, values []float32) error {
	if err := s.checkAligned(); err != nil {
		return err
	}
	if !field.Valid() {
		return fmt.Errorf("未知字段: %v", field)
	}
	n := s.Len()
	if want := n * s.prims.width(field); len(values) != want {
		return fmt.Errorf("%w: %s 新值长度 %d，期望 %d", ErrMaskLength, field, len(values), want)
	}
	if s.adapter != nil {
		if err := s.adapter.Reset(field, n); err != nil {
			return fmt.Errorf("重置 %s 的优化器状态失败: %w", field, err)
		}
	}
	s.prims.setColumn(field, append([]float32(nil), values...))
	s.version++
	return nil
}

// ResetStats 清零全部高斯的梯度累计、计数与最大投影半径
func (s *PrimitiveStore) ResetStats() {
	n := s.Len()
	s.gradAccum = make([]float32, n)
	s.denom = make([]int32, n)
	s.maxRadii2D = make([]float32, n)
}

// load 用完整数据替换存储内容（加载与恢复时使用）
func (s *PrimitiveStore) load(p Primitives) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.prims = p
	s.ResetStats()
	s.version++
	return nil
}

// Scaling 物理尺度 exp(raw)，每次调用重新计算
func (s *PrimitiveStore) Scaling() []float32 {
	raw := s.prims.Scaling
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = ScalingActivation(v)
	}
	return out
}

// MaxScaling 每行物理尺度的最大分量
func (s *PrimitiveStore) MaxScaling() []float32 {
	raw := s.prims.Scaling
	out := make([]float32, s.Len())
	for i := range out {
		m := float32(0)
		for d := 0; d < 3; d++ {
			m = float32(math.Max(float64(m), float64(ScalingActivation(raw[3*i+d]))))
		}
		out[i] = m
	}
	return out
}

// Opacity 物理不透明度 sigmoid(raw)
func (s *PrimitiveStore) Opacity() []float32 {
	raw := s.prims.Opacity
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = OpacityActivation(v)
	}
	return out
}

// Rotation 单位化后的四元数
func (s *PrimitiveStore) Rotation() []float32 {
	raw := s.prims.Rotation
	out := make([]float32, len(raw))
	for i := 0; i < s.Len(); i++ {
		q := NormalizeRotation([4]float32{raw[4*i], raw[4*i+1], raw[4*i+2], raw[4*i+3]})
		copy(out[4*i:], q[:])
	}
	return out
}

// Covariance 每行 6 个协方差上三角元素
func (s *PrimitiveStore) Covariance(modifier float64) []float32 {
	n := s.Len()
	out := make([]float32, 6*n)
	sc, rot := s.prims.Scaling, s.prims.Rotation
	for i := 0; i < n; i++ {
		scale := [3]float32{
			ScalingActivation(sc[3*i]),
			ScalingActivation(sc[3*i+1]),
			ScalingActivation(sc[3*i+2]),
		}
		cov := BuildCovariance(scale, [4]float32{rot[4*i], rot[4*i+1], rot[4*i+2], rot[4*i+3]}, modifier)
		copy(out[6*i:], cov[:])
	}
	return out
}

// Features 每行拼接 DC 与其余系数，共 3(K+1) 个，系数优先
func (s *PrimitiveStore) Features() []float32 {
	n, rw := s.Len(), s.prims.RestWidth
	width := 3 + rw
	out := make([]float32, width*n)
	for i := 0; i < n; i++ {
		copy(out[i*width:], s.prims.FeaturesDC[3*i:3*i+3])
		copy(out[i*width+3:], s.prims.FeaturesRest[rw*i:rw*(i+1)])
	}
	return out
}
