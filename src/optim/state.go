package optim

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"SplatSphere/src/library/entity"
)

const (
	defaultBeta1 = 0.9
	defaultBeta2 = 0.999
	defaultEps   = 1e-15
)

// fieldState 单个参数组的动量；Active 为 false 表示尚未产生状态。
// 宽度可以为 0（零阶球谐的 f_rest），此时只跟踪行数
type fieldState struct {
	Width    int
	LR       float64
	Step     int64
	Active   bool
	NumRows  int
	ExpAvg   []float32
	ExpAvgSq []float32
}

func (s *fieldState) hasState() bool { return s.Active }

func (s *fieldState) rows() int { return s.NumRows }

func (s *fieldState) zero(rows int) {
	s.Active = true
	s.NumRows = rows
	s.ExpAvg = make([]float32, rows*s.Width)
	s.ExpAvgSq = make([]float32, rows*s.Width)
}

// momentState Adam 与 SparseAdam 共用的状态管理
type momentState struct {
	kind   Kind
	groups map[entity.Field]*fieldState
	order  []entity.Field
	Beta1  float64
	Beta2  float64
	Eps    float64
}

func newMomentState(kind Kind, groups []GroupConfig) (*momentState, error) {
	m := &momentState{
		kind:   kind,
		groups: make(map[entity.Field]*fieldState, len(groups)),
		Beta1:  defaultBeta1,
		Beta2:  defaultBeta2,
		Eps:    defaultEps,
	}
	for _, g := range groups {
		if !g.Field.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrUnknownField, g.Field)
		}
		if g.Width < 0 {
			return nil, fmt.Errorf("参数组 %s 的宽度不能为负数: %d", g.Field, g.Width)
		}
		if _, dup := m.groups[g.Field]; dup {
			return nil, fmt.Errorf("参数组 %s 重复注册", g.Field)
		}
		m.groups[g.Field] = &fieldState{Width: g.Width, LR: g.LR}
		m.order = append(m.order, g.Field)
	}
	return m, nil
}

func (m *momentState) Kind() Kind { return m.kind }

func (m *momentState) group(field entity.Field) (*fieldState, error) {
	s, ok := m.groups[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return s, nil
}

// Extend 新增行的动量为零；尚无状态时无需处理
func (m *momentState) Extend(field entity.Field, rows int) error {
	s, err := m.group(field)
	if err != nil {
		return err
	}
	if rows < 0 {
		return fmt.Errorf("%w: 扩展行数为负 %d", ErrStateShape, rows)
	}
	if !s.hasState() || rows == 0 {
		return nil
	}
	pad := make([]float32, rows*s.Width)
	s.ExpAvg = append(s.ExpAvg, pad...)
	s.ExpAvgSq = append(s.ExpAvgSq, pad...)
	s.NumRows += rows
	return nil
}

// Compact 删除 removed 为 true 的行，保持剩余行的相对顺序
func (m *momentState) Compact(field entity.Field, removed []bool) error {
	s, err := m.group(field)
	if err != nil {
		return err
	}
	if !s.hasState() {
		return nil
	}
	if len(removed) != s.rows() {
		return fmt.Errorf("%w: %s 动量 %d 行，掩码 %d 行", ErrStateShape, field, s.rows(), len(removed))
	}
	s.ExpAvg = compactRows(s.ExpAvg, removed, s.Width)
	s.ExpAvgSq = compactRows(s.ExpAvgSq, removed, s.Width)
	s.NumRows = countKept(removed)
	return nil
}

// Reset 参数被整体替换后动量清零
func (m *momentState) Reset(field entity.Field, rows int) error {
	s, err := m.group(field)
	if err != nil {
		return err
	}
	if rows < 0 {
		return fmt.Errorf("%w: 行数为负 %d", ErrStateShape, rows)
	}
	s.zero(rows)
	return nil
}

func (m *momentState) SetLearningRate(field entity.Field, lr float64) error {
	s, err := m.group(field)
	if err != nil {
		return err
	}
	s.LR = lr
	return nil
}

func (m *momentState) LearningRate(field entity.Field) (float64, error) {
	s, err := m.group(field)
	if err != nil {
		return 0, err
	}
	return s.LR, nil
}

func (m *momentState) Rows(field entity.Field) (int, bool) {
	s, ok := m.groups[field]
	if !ok || !s.hasState() {
		return 0, false
	}
	return s.rows(), true
}

// Moments 返回字段的一阶与二阶动量（测试与检查点使用）
func (m *momentState) Moments(field entity.Field) (expAvg, expAvgSq []float32, ok bool) {
	s, found := m.groups[field]
	if !found || !s.hasState() {
		return nil, nil, false
	}
	return s.ExpAvg, s.ExpAvgSq, true
}

// prepare 校验形状并在首次更新时创建零状态
func (m *momentState) prepare(field entity.Field, param, grad []float32, visible []bool) (*fieldState, int, error) {
	s, err := m.group(field)
	if err != nil {
		return nil, 0, err
	}
	if s.Width == 0 {
		if len(param) != 0 || len(grad) != 0 {
			return nil, 0, fmt.Errorf("%w: %s 宽度为 0 但参数非空", ErrStateShape, field)
		}
		return s, 0, nil
	}
	if len(param) != len(grad) || len(param)%s.Width != 0 {
		return nil, 0, fmt.Errorf("%w: %s 参数 %d 梯度 %d 宽度 %d", ErrStateShape, field, len(param), len(grad), s.Width)
	}
	rows := len(param) / s.Width
	if visible != nil && len(visible) != rows {
		return nil, 0, fmt.Errorf("%w: 可见性掩码 %d 行，参数 %d 行", ErrStateShape, len(visible), rows)
	}
	if !s.hasState() {
		s.zero(rows)
	}
	if s.rows() != rows {
		return nil, 0, fmt.Errorf("%w: %s 动量 %d 行，参数 %d 行", ErrStateShape, field, s.rows(), rows)
	}
	return s, rows, nil
}

func countKept(removed []bool) int {
	kept := 0
	for _, r := range removed {
		if !r {
			kept++
		}
	}
	return kept
}

func compactRows(src []float32, removed []bool, width int) []float32 {
	dst := make([]float32, 0, countKept(removed)*width)
	for i, r := range removed {
		if r {
			continue
		}
		dst = append(dst, src[i*width:(i+1)*width]...)
	}
	return dst
}

// stateDict 检查点中的优化器状态
type stateDict struct {
	Kind   Kind
	Groups []groupDict
}

type groupDict struct {
	Field    entity.Field
	Width    int
	LR       float64
	Step     int64
	HasState bool
	Rows     int
	ExpAvg   []float32
	ExpAvgSq []float32
}

func (m *momentState) StateDict() ([]byte, error) {
	dict := stateDict{Kind: m.kind}
	for _, f := range m.order {
		s := m.groups[f]
		dict.Groups = append(dict.Groups, groupDict{
			Field:    f,
			Width:    s.Width,
			LR:       s.LR,
			Step:     s.Step,
			HasState: s.hasState(),
			Rows:     s.NumRows,
			ExpAvg:   s.ExpAvg,
			ExpAvgSq: s.ExpAvgSq,
		})
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(dict); err != nil {
		return nil, fmt.Errorf("编码优化器状态失败: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadStateDict 恢复状态；参数组必须与当前注册的一致，类型不同也可以加载
func (m *momentState) LoadStateDict(blob []byte) error {
	var dict stateDict
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&dict); err != nil {
		return fmt.Errorf("解码优化器状态失败: %w", err)
	}
	if len(dict.Groups) != len(m.groups) {
		return fmt.Errorf("%w: 状态含 %d 个参数组，当前 %d 个", ErrStateShape, len(dict.Groups), len(m.groups))
	}
	restored := make(map[entity.Field]fieldState, len(dict.Groups))
	for _, g := range dict.Groups {
		s, err := m.group(g.Field)
		if err != nil {
			return err
		}
		if g.Width != s.Width {
			return fmt.Errorf("%w: %s 宽度 %d，当前 %d", ErrStateShape, g.Field, g.Width, s.Width)
		}
		if len(g.ExpAvg) != g.Rows*g.Width || len(g.ExpAvgSq) != g.Rows*g.Width {
			return fmt.Errorf("%w: %s 动量长度异常", ErrStateShape, g.Field)
		}
		fs := fieldState{Width: g.Width, LR: g.LR, Step: g.Step}
		if g.HasState {
			fs.Active = true
			fs.NumRows = g.Rows
			fs.ExpAvg = append(make([]float32, 0, len(g.ExpAvg)), g.ExpAvg...)
			fs.ExpAvgSq = append(make([]float32, 0, len(g.ExpAvgSq)), g.ExpAvgSq...)
		}
		restored[g.Field] = fs
	}
	for f, fs := range restored {
		*m.groups[f] = fs
	}
	return nil
}
