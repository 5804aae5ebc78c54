package acceler

import "SplatSphere/src/library/logger"

// ComputeStrategy 计算策略枚举
type ComputeStrategy int

const (
	StrategyStandard ComputeStrategy = iota
	StrategyAVX2
	StrategyAVX512
)

func (s ComputeStrategy) String() string {
	switch s {
	case StrategyAVX2:
		return "avx2"
	case StrategyAVX512:
		return "avx512"
	default:
		return "standard"
	}
}

// ComputeStrategySelector 计算策略选择器
type ComputeStrategySelector struct {
	Detector *HardwareDetector
	// ParallelThreshold 点数达到该值才启用并行近邻查询
	ParallelThreshold int
	// MaxWorkers 并行度上限，0 表示使用全部核心
	MaxWorkers int
	// DisableSparse 禁用稀疏优化器内核
	DisableSparse bool
}

// NewComputeStrategySelector 创建计算策略选择器
func NewComputeStrategySelector() *ComputeStrategySelector {
	return &ComputeStrategySelector{
		Detector:          GlobalHardwareDetector,
		ParallelThreshold: 4096,
	}
}

func (css *ComputeStrategySelector) GetHardwareCapabilities() HardwareCapabilities {
	return css.Detector.DetectAllHardware()
}

// SelectOptimalStrategy 按指令集选择向量计算策略
func (css *ComputeStrategySelector) SelectOptimalStrategy() ComputeStrategy {
	caps := css.GetHardwareCapabilities()
	if caps.HasAVX512 {
		return StrategyAVX512
	}
	if caps.HasAVX2 {
		return StrategyAVX2
	}
	return StrategyStandard
}

// NeighborStrategy 近邻查询执行方式
type NeighborStrategy struct {
	Parallel bool
	Workers  int
}

// SelectNeighborStrategy 按点数决定近邻查询是否并行以及协程数
func (css *ComputeStrategySelector) SelectNeighborStrategy(n int) NeighborStrategy {
	if n < css.ParallelThreshold {
		return NeighborStrategy{Workers: 1}
	}
	workers := css.GetHardwareCapabilities().CPUCores
	if css.MaxWorkers > 0 && workers > css.MaxWorkers {
		workers = css.MaxWorkers
	}
	if workers < 1 {
		workers = 1
	}
	return NeighborStrategy{Parallel: workers > 1, Workers: workers}
}

// SparseKernelsSupported 稀疏 Adam 内核依赖 AVX2 及以上指令集
func (css *ComputeStrategySelector) SparseKernelsSupported() bool {
	if css.DisableSparse {
		return false
	}
	return css.SelectOptimalStrategy() != StrategyStandard
}

// HostMemoryFits 判断额外申请 bytes 字节是否仍在可用内存以内；内存未知时视为可以
func (css *ComputeStrategySelector) HostMemoryFits(bytes uint64) bool {
	err := css.Detector.ValidateHardwareRequirements(HardwareCapabilities{MemoryAvailable: bytes})
	if err != nil {
		logger.Trace("内存检查未通过: %v", err)
		return false
	}
	return true
}
