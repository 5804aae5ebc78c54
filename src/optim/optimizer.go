package optim

import (
	"errors"
	"fmt"

	"SplatSphere/src/library/entity"
	"SplatSphere/src/library/logger"
)

// Kind 优化器类型
type Kind string

const (
	KindDefault    Kind = "default"
	KindSparseAdam Kind = "sparse_adam"
)

var (
	// ErrSparseUnavailable 当前环境无法构造稀疏优化器
	ErrSparseUnavailable = errors.New("optim: sparse adam unavailable")
	// ErrUnknownField 字段未注册为参数组
	ErrUnknownField = errors.New("optim: unknown field")
	// ErrStateShape 动量状态与参数形状不一致
	ErrStateShape = errors.New("optim: state shape mismatch")
)

// ParseKind 解析配置中的优化器类型
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindDefault, "":
		return KindDefault, nil
	case KindSparseAdam:
		return KindSparseAdam, nil
	default:
		return "", fmt.Errorf("未知的优化器类型: %q", s)
	}
}

// GroupConfig 一个参数组：字段、每行宽度与学习率
type GroupConfig struct {
	Field entity.Field
	Width int
	LR    float64
}

// Capabilities 构造稀疏优化器前查询的硬件能力
type Capabilities interface {
	SparseKernelsSupported() bool
}

// Optimizer 按字段维护动量状态并执行参数更新。
// Extend/Compact/Reset 与参数数组的结构编辑一一对应，保证动量与参数逐行对齐
type Optimizer interface {
	Kind() Kind
	Extend(field entity.Field, rows int) error
	Compact(field entity.Field, removed []bool) error
	Reset(field entity.Field, rows int) error
	// Step 用 grad 原地更新 param；visible 为 nil 表示全部可见
	Step(field entity.Field, param, grad []float32, visible []bool) error
	SetLearningRate(field entity.Field, lr float64) error
	LearningRate(field entity.Field) (float64, error)
	// Rows 返回字段动量状态的行数，尚无状态时 ok 为 false
	Rows(field entity.Field) (rows int, ok bool)
	StateDict() ([]byte, error)
	LoadStateDict(blob []byte) error
}

// NewOptimizer 按类型构造优化器。
// 请求 sparse_adam 但能力不满足时确定性地回退到 Adam 并记录告警
func NewOptimizer(kind Kind, groups []GroupConfig, caps Capabilities) (Optimizer, error) {
	switch kind {
	case KindDefault:
		return NewAdam(groups)
	case KindSparseAdam:
		opt, err := NewSparseAdam(groups, caps)
		if errors.Is(err, ErrSparseUnavailable) {
			logger.Warning("稀疏 Adam 不可用，回退到默认 Adam: %v", err)
			return NewAdam(groups)
		}
		return opt, err
	default:
		return nil, fmt.Errorf("未知的优化器类型: %q", kind)
	}
}
