package gaussian

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"SplatSphere/src/library/logger"
	"SplatSphere/src/library/monitor"
)

// CycleReport 一次致密化与剪枝的数量变化
type CycleReport struct {
	Before int
	Cloned int
	// Split 被分裂的父高斯数量，每个父高斯产生 splitChildren 个子高斯
	Split    int
	Children int
	Pruned   int
	After    int
}

// AverageGradient grad_accum/denom，未被累计过的行（0/0）记为 0
func (m *GaussianModel) AverageGradient() []float32 {
	accum, denom := m.store.gradAccum, m.store.denom
	out := make([]float32, len(accum))
	for i := range accum {
		g := float64(accum[i]) / float64(denom[i])
		if math.IsNaN(g) || math.IsInf(g, 0) {
			g = 0
		}
		out[i] = float32(g)
	}
	return out
}

// cycleRadii 致密化周期内临时携带的半径缓冲，与高斯逐行对齐，周期结束即丢弃
type cycleRadii []float32

func (r cycleRadii) appendRows(selected []bool, repeat int) cycleRadii {
	if r == nil {
		return nil
	}
	picked := selectRows([]float32(r), selected, 1)
	for i := 0; i < repeat; i++ {
		r = append(r, picked...)
	}
	return r
}

func (r cycleRadii) compact(removed []bool) cycleRadii {
	if r == nil {
		return nil
	}
	return selectRows([]float32(r), invert(removed), 1)
}

// densifyAndClone 复制梯度大且尺寸小的高斯，返回新增数量
func (m *GaussianModel) densifyAndClone(grads []float32, threshold, extent float64, radii *cycleRadii) (int, error) {
	defer monitor.ObserveStage("clone", time.Now())

	maxScale := m.store.MaxScaling()
	limit := m.percentDense * extent
	selected := make([]bool, m.Len())
	for i := range selected {
		selected[i] = float64(grads[i]) >= threshold && float64(maxScale[i]) <= limit
	}
	n := countTrue(selected)
	if n == 0 {
		return 0, nil
	}

	if err := m.store.Append(m.store.prims.Select(selected)); err != nil {
		return 0, fmt.Errorf("clone 追加失败: %w", err)
	}
	*radii = radii.appendRows(selected, 1)
	monitor.Densified.WithLabelValues("clone").Add(float64(n))
	logger.Trace("clone 新增 %d 个高斯", n)
	return n, nil
}

// densifyAndSplit 将梯度大且尺寸大的高斯分裂为 children 个子高斯，先追加子高斯再删除父高斯。
// grads 长度可以小于当前数量（clone 之后），不足部分视为 0
func (m *GaussianModel) densifyAndSplit(grads []float32, threshold, extent float64, children int, radii *cycleRadii) (int, error) {
	defer monitor.ObserveStage("split", time.Now())

	nInit := m.Len()
	padded := make([]float32, nInit)
	copy(padded, grads)

	maxScale := m.store.MaxScaling()
	limit := m.percentDense * extent
	selected := make([]bool, nInit)
	for i := range selected {
		selected[i] = float64(padded[i]) >= threshold && float64(maxScale[i]) > limit
	}
	nSel := countTrue(selected)
	if nSel == 0 {
		return 0, nil
	}

	parents := m.store.prims.Select(selected)
	kids := parents.Repeat(children)
	shrink := 0.8 * float64(children)

	// 子高斯按块排列：第 r 份包含全部父高斯各一个样本
	for r := 0; r < children; r++ {
		for j := 0; j < nSel; j++ {
			row := r*nSel + j
			var sample [3]float64
			var scale [3]float32
			for d := 0; d < 3; d++ {
				scale[d] = ScalingActivation(parents.Scaling[3*j+d])
				normal := distuv.Normal{Mu: 0, Sigma: float64(scale[d]), Src: m.rng}
				sample[d] = normal.Rand()
			}
			q := [4]float32{parents.Rotation[4*j], parents.Rotation[4*j+1], parents.Rotation[4*j+2], parents.Rotation[4*j+3]}
			offset := RotateVector(q, sample)
			for d := 0; d < 3; d++ {
				kids.XYZ[3*row+d] = float32(float64(parents.XYZ[3*j+d]) + offset[d])
				kids.Scaling[3*row+d] = ScalingInverseActivation(float32(float64(scale[d]) / shrink))
			}
		}
	}

	if err := m.store.Append(kids); err != nil {
		return 0, fmt.Errorf("split 追加子高斯失败: %w", err)
	}
	*radii = radii.appendRows(selected, children)

	pruneFilter := make([]bool, m.Len())
	copy(pruneFilter, selected)
	if _, err := m.store.Remove(pruneFilter); err != nil {
		return 0, fmt.Errorf("split 删除父高斯失败: %w", err)
	}
	*radii = radii.compact(pruneFilter)

	monitor.Densified.WithLabelValues("split").Add(float64(nSel * children))
	monitor.Pruned.WithLabelValues(monitor.ReasonSplitFrom).Add(float64(nSel))
	logger.Trace("split %d 个父高斯，新增 %d 个子高斯", nSel, nSel*children)
	return nSel, nil
}

// DensifyAndPrune 依次执行 clone、split 与一次合并剪枝，最后清零统计量。
// radii 为本周期的半径缓冲，可以为 nil；函数返回后不再保留
func (m *GaussianModel) DensifyAndPrune(maxGrad, minOpacity, extent, maxScreenSize float64, radii []float32) (CycleReport, error) {
	if err := m.requireTrainable(); err != nil {
		return CycleReport{}, err
	}
	if radii != nil && len(radii) != m.Len() {
		return CycleReport{}, fmt.Errorf("%w: 半径缓冲 %d 行，高斯 %d 个", ErrMaskLength, len(radii), m.Len())
	}
	if err := m.store.checkAligned(); err != nil {
		return CycleReport{}, err
	}
	start := time.Now()
	defer monitor.ObserveStage("densify_and_prune", start)

	report := CycleReport{Before: m.Len()}
	grads := m.AverageGradient()
	tmp := cycleRadii(radii)
	if tmp != nil {
		tmp = append(cycleRadii(nil), tmp...)
	}

	var err error
	if report.Cloned, err = m.densifyAndClone(grads, maxGrad, extent, &tmp); err != nil {
		return report, err
	}
	if report.Split, err = m.densifyAndSplit(grads, maxGrad, extent, m.splitChildren, &tmp); err != nil {
		return report, err
	}
	report.Children = report.Split * m.splitChildren

	mask, err := m.PruneMask(minOpacity, extent, maxScreenSize)
	if err != nil {
		return report, err
	}
	if report.Pruned, err = m.prune(mask, monitor.ReasonCombined); err != nil {
		return report, err
	}
	tmp = tmp.compact(mask)
	if tmp != nil && len(tmp) != m.Len() {
		return report, fmt.Errorf("%w: 半径缓冲 %d 行，高斯 %d 个", ErrRowMismatch, len(tmp), m.Len())
	}

	m.store.ResetStats()
	report.After = m.Len()
	monitor.Gaussians.Set(float64(report.After))
	logger.Info("致密化完成: %d -> %d (clone %d, split %d->%d, prune %d)",
		report.Before, report.After, report.Cloned, report.Split, report.Children, report.Pruned)
	return report, nil
}
