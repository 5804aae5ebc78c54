package optim

import (
	"fmt"

	"SplatSphere/src/library/entity"
)

// SparseAdam 只更新本轮可见行的动量与参数，不可见行保持不变
type SparseAdam struct {
	*momentState
}

// NewSparseAdam caps 为空或不支持稀疏内核时返回 ErrSparseUnavailable
func NewSparseAdam(groups []GroupConfig, caps Capabilities) (*SparseAdam, error) {
	if caps == nil {
		return nil, fmt.Errorf("%w: 未提供硬件能力", ErrSparseUnavailable)
	}
	if !caps.SparseKernelsSupported() {
		return nil, fmt.Errorf("%w: 硬件不支持稀疏内核", ErrSparseUnavailable)
	}
	m, err := newMomentState(KindSparseAdam, groups)
	if err != nil {
		return nil, err
	}
	return &SparseAdam{momentState: m}, nil
}

func (a *SparseAdam) Step(field entity.Field, param, grad []float32, visible []bool) error {
	s, rows, err := a.prepare(field, param, grad, visible)
	if err != nil {
		return err
	}
	s.Step++
	stepSize, bc2 := a.correction(s)
	for r := 0; r < rows; r++ {
		if visible != nil && !visible[r] {
			continue
		}
		for i := r * s.Width; i < (r+1)*s.Width; i++ {
			adamUpdate(s, param, grad, i, a.Beta1, a.Beta2, a.Eps, stepSize, bc2)
		}
	}
	return nil
}
