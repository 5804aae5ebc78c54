package optim

import (
	"math"

	"SplatSphere/src/library/entity"
)

// Adam 稠密 Adam，每次更新所有行
type Adam struct {
	*momentState
}

func NewAdam(groups []GroupConfig) (*Adam, error) {
	m, err := newMomentState(KindDefault, groups)
	if err != nil {
		return nil, err
	}
	return &Adam{momentState: m}, nil
}

// Step 稠密更新忽略 visible，与逐元素 Adam 一致
func (a *Adam) Step(field entity.Field, param, grad []float32, visible []bool) error {
	s, _, err := a.prepare(field, param, grad, visible)
	if err != nil {
		return err
	}
	s.Step++
	stepSize, bc2 := a.correction(s)
	for i := range param {
		adamUpdate(s, param, grad, i, a.Beta1, a.Beta2, a.Eps, stepSize, bc2)
	}
	return nil
}

func (m *momentState) correction(s *fieldState) (stepSize, sqrtBC2 float64) {
	bc1 := 1 - math.Pow(m.Beta1, float64(s.Step))
	bc2 := 1 - math.Pow(m.Beta2, float64(s.Step))
	return s.LR / bc1, math.Sqrt(bc2)
}

func adamUpdate(s *fieldState, param, grad []float32, i int, beta1, beta2, eps, stepSize, sqrtBC2 float64) {
	g := float64(grad[i])
	m := beta1*float64(s.ExpAvg[i]) + (1-beta1)*g
	v := beta2*float64(s.ExpAvgSq[i]) + (1-beta2)*g*g
	s.ExpAvg[i] = float32(m)
	s.ExpAvgSq[i] = float32(v)
	denom := math.Sqrt(v)/sqrtBC2 + eps
	param[i] = float32(float64(param[i]) - stepSize*m/denom)
}
