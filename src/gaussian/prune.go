package gaussian

import (
	"fmt"
	"time"

	"SplatSphere/src/library/logger"
	"SplatSphere/src/library/monitor"
)

// worldSizeRatio 物理尺度超过 extent 的这一比例视为过大
const worldSizeRatio = 0.1

// OpacityMask 物理不透明度低于 minOpacity 的行
func (m *GaussianModel) OpacityMask(minOpacity float64) []bool {
	opacity := m.store.Opacity()
	mask := make([]bool, len(opacity))
	for i, o := range opacity {
		mask[i] = float64(o) < minOpacity
	}
	return mask
}

// ScreenSizeMask 最大投影半径超过 maxScreenSize 的行
func (m *GaussianModel) ScreenSizeMask(maxScreenSize float64) []bool {
	radii := m.store.maxRadii2D
	mask := make([]bool, len(radii))
	for i, r := range radii {
		mask[i] = float64(r) > maxScreenSize
	}
	return mask
}

// WorldSizeMask 最大物理尺度超过 0.1×extent 的行
func (m *GaussianModel) WorldSizeMask(extent float64) []bool {
	maxScale := m.store.MaxScaling()
	limit := worldSizeRatio * extent
	mask := make([]bool, len(maxScale))
	for i, s := range maxScale {
		mask[i] = float64(s) > limit
	}
	return mask
}

// PruneMask 合并剪枝掩码；maxScreenSize 为 0 时只按不透明度剪枝
func (m *GaussianModel) PruneMask(minOpacity, extent, maxScreenSize float64) ([]bool, error) {
	if err := m.store.checkAligned(); err != nil {
		return nil, err
	}
	mask := m.OpacityMask(minOpacity)
	if maxScreenSize > 0 {
		screen := m.ScreenSizeMask(maxScreenSize)
		world := m.WorldSizeMask(extent)
		for i := range mask {
			mask[i] = mask[i] || screen[i] || world[i]
		}
	}
	return mask, nil
}

// PrunePoints 一次性删除 mask 为 true 的高斯
func (m *GaussianModel) PrunePoints(mask []bool) (int, error) {
	return m.prune(mask, monitor.ReasonManual)
}

func (m *GaussianModel) prune(mask []bool, reason string) (int, error) {
	removed, err := m.store.Remove(mask)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		monitor.Pruned.WithLabelValues(reason).Add(float64(removed))
		monitor.Gaussians.Set(float64(m.Len()))
	}
	return removed, nil
}

// PruneIsolated 删除最近邻距离不小于 threshold 的高斯，返回删除数量
func (m *GaussianModel) PruneIsolated(threshold float64) (int, error) {
	if threshold <= 0 {
		return 0, fmt.Errorf("孤立点距离阈值必须为正数: %v", threshold)
	}
	if m.Len() == 0 {
		return 0, nil
	}
	if err := m.store.checkAligned(); err != nil {
		return 0, err
	}
	defer monitor.ObserveStage("prune_isolated", time.Now())

	dists := m.NearestNeighborDistances()
	mask := make([]bool, len(dists))
	for i, d := range dists {
		mask[i] = d >= threshold
	}
	removed, err := m.prune(mask, monitor.ReasonIsolated)
	if err != nil {
		return 0, err
	}
	logger.Info("孤立点剪枝: 阈值 %v，删除 %d 个，剩余 %d 个", threshold, removed, m.Len())
	return removed, nil
}
